package api

const streamDocsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Live Stream - Devlog Agent</title>
  <style>
    body {
      margin: 0 auto;
      max-width: 860px;
      padding: 24px;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    h1, h2 { color: #e6edf3; font-weight: 600; }
    code, pre {
      font-family: ui-monospace, SFMono-Regular, Menlo, monospace;
      background: #161b22;
      border: 1px solid #30363d;
      border-radius: 6px;
    }
    code { padding: 1px 5px; }
    pre { padding: 12px 16px; overflow-x: auto; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border-bottom: 1px solid #30363d; padding: 6px 8px; text-align: left; }
  </style>
</head>
<body>
  <p><a href="/docs">&larr; REST API</a></p>
  <h1>Live debug log stream</h1>
  <p>Every debug log decoded from a tapped WebSocket is pushed to all connected
  stream clients as soon as it is recorded. Slow clients have events dropped.</p>

  <h2>Endpoints</h2>
  <table>
    <tr><th>Path</th><th>Transport</th></tr>
    <tr><td><code>GET /api/v1/stream/sse</code></td><td>Server-sent events, event name <code>debug_log</code>, event id is the log ID</td></tr>
    <tr><td><code>GET /api/v1/stream/ws</code></td><td>WebSocket, one text message per log</td></tr>
  </table>

  <h2>Formats</h2>
  <p>Pick the payload with <code>?format=</code>:</p>
  <ul>
    <li><code>pretty</code> (default): the log body indented with two spaces, key order kept.</li>
    <li><code>json</code>: the full record with <code>id</code>, <code>raw</code>, <code>enabled_plugins</code>, <code>function_display_name</code>, <code>created_at</code> and <code>received_at</code>.</li>
  </ul>

  <h2>Examples</h2>
<pre>curl -N http://127.0.0.1:8190/api/v1/stream/sse

websocat 'ws://127.0.0.1:8190/api/v1/stream/ws?format=json'</pre>
</body>
</html>`
