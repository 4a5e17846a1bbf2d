package api

// docsHTML renders the OpenAPI document served by huma at /openapi.json.
const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Devlog Agent API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    body { height: 100vh; margin: 0; display: flex; flex-direction: column; background: #0d1117; }
    header {
      display: flex;
      gap: 16px;
      align-items: center;
      padding: 8px 16px;
      border-bottom: 1px solid #30363d;
      font: 13px -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
      color: #e6edf3;
    }
    header a { color: #58a6ff; text-decoration: none; }
    header .brand { font-weight: 600; margin-right: auto; }
    elements-api { flex: 1; min-height: 0; }
  </style>
</head>
<body>
  <header>
    <span class="brand">Devlog Agent</span>
    <a href="/docs/stream">Live stream</a>
    <a href="/metrics">Metrics</a>
    <a href="/openapi.json">OpenAPI</a>
  </header>
  <elements-api apiDescriptionUrl="/openapi.json" router="hash" layout="sidebar" tryItCredentialsPolicy="same-origin" darkMode />
</body>
</html>`
