package web

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.Write([]byte(indexPage))
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Pulse Voice</title>
    <style>
        body { font-family: sans-serif; max-width: 720px; margin: 40px auto; padding: 20px; }
        h1 { color: #333; }
        .status { padding: 12px; border-radius: 5px; margin: 16px 0; background: #f0f0f0; white-space: pre-line; }
        .status.success { background: #d4edda; }
        .status.warning { background: #fff3cd; }
        .status.danger { background: #f8d7da; }
        .track { font-weight: bold; margin: 8px 0; }
        button { background: #007bff; color: white; border: none; padding: 8px 14px; border-radius: 5px; cursor: pointer; margin: 2px; }
        button:hover { background: #0056b3; }
        input { padding: 8px; margin: 5px; }
        li.current { font-weight: bold; }
    </style>
</head>
<body>
    <h1>Pulse Voice</h1>
    <div class="status" id="status">Ready</div>
    <div class="track" id="track"></div>
    <div id="voice"></div>
    <div>
        <button onclick="voice('toggle')">Toggle voice</button>
        <button onclick="act('previous')">Previous</button>
        <button onclick="act('pause')">Pause</button>
        <button onclick="act('resume')">Play</button>
        <button onclick="act('next')">Next</button>
        <button onclick="act('more')">More</button>
        <button onclick="act('stop')">Stop</button>
    </div>
    <div>
        <input id="topic" placeholder="topic">
        <button onclick="refresh()">Load</button>
    </div>
    <div>
        <input id="say" placeholder="say something">
        <button onclick="say()">Say</button>
    </div>
    <ol id="articles"></ol>
    <script>
        function post(url, body) {
            return fetch(url, {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body || {})});
        }
        function act(action) { post('/api/command', {action: action}); }
        function voice(op) { post('/api/voice/' + op); }
        function refresh() { post('/api/articles/refresh?topic=' + encodeURIComponent(document.getElementById('topic').value)); }
        function say() {
            const el = document.getElementById('say');
            post('/api/speech', {text: el.value}).then(res => {
                if (res.status === 409) { post('/api/command', {text: el.value}); }
                el.value = '';
            });
        }
        function showNotice(n) {
            const el = document.getElementById('status');
            el.textContent = n.message;
            el.className = 'status ' + n.level;
        }
        function showState(s) {
            document.getElementById('track').textContent = s.trackInfo || '';
            document.getElementById('voice').textContent = 'Voice: ' + s.listening + (s.topic ? ' | Topic: ' + s.topic : '');
            const list = document.getElementById('articles');
            list.innerHTML = '';
            (s.articles || []).forEach((a, i) => {
                const li = document.createElement('li');
                li.textContent = a.title + ' (' + a.source + ')';
                if (i === s.index) { li.className = 'current'; }
                li.onclick = () => post('/api/select', {index: i, level: 'short'});
                list.appendChild(li);
            });
        }
        function connect() {
            const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onmessage = e => {
                const m = JSON.parse(e.data);
                if (m.name === 'notice') { showNotice(m.payload); }
                if (m.name === 'state') { showState(m.payload); }
            };
            ws.onclose = () => setTimeout(connect, 2000);
        }
        fetch('/api/state').then(r => r.json()).then(v => {
            showState(v.state);
            if (v.notice) { showNotice(v.notice); }
        });
        connect();
    </script>
</body>
</html>`
