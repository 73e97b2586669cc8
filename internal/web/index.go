package web

// indexHTML is a single-page console: instrument table with start/stop
// buttons, an add form and the live report log.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>gridsim</title>
  <style>
    body { font-family: 'Space Mono', 'JetBrains Mono', monospace; margin: 2rem; color: #111; background: #fafafa; }
    h1 { font-size: 1.2rem; }
    table { border-collapse: collapse; margin-bottom: 1.5rem; }
    td, th { border: 1px solid #999; padding: .3rem .6rem; text-align: right; }
    th { background: #eee; }
    #log { height: 24rem; overflow-y: auto; white-space: pre; background: #fff; border: 2px solid #111; padding: .5rem; font-size: .8rem; }
    .warn { color: #a60; } .error { color: #b00; }
    form input { width: 7rem; }
  </style>
</head>
<body>
  <h1>gridsim <span id="cash"></span></h1>
  <table id="instruments">
    <thead><tr><th>instrument</th><th>target</th><th>drop</th><th>max steps</th><th>state</th><th></th></tr></thead>
    <tbody></tbody>
  </table>
  <form id="add">
    <input name="instrument" placeholder="BTC_USDT" required />
    <input name="target_rate" placeholder="0.005" />
    <input name="drop_rate" placeholder="-0.01" />
    <input name="max_steps" placeholder="30" />
    <button type="submit">add</button>
  </form>
  <h2>log</h2>
  <div id="log"></div>
<script>
async function refresh() {
  const res = await fetch('/api/state');
  const state = await res.json();
  document.getElementById('cash').textContent = 'cash ' + Number(state.ledger.cash).toFixed(0) +
    ' | realized ' + Number(state.ledger.realized_profit).toFixed(2);
  const body = document.querySelector('#instruments tbody');
  body.innerHTML = '';
  for (const s of state.instruments) {
    const c = s.config;
    const tr = document.createElement('tr');
    const action = s.running ? 'stop' : 'start';
    tr.innerHTML = '<td>' + c.instrument + '</td><td>' + c.target_rate + '</td><td>' + c.drop_rate +
      '</td><td>' + c.max_steps + '</td><td>' + (s.running ? 'running' : 'idle') +
      '</td><td><button>' + action + '</button></td>';
    tr.querySelector('button').onclick = async () => {
      await fetch('/api/instruments/' + c.instrument + '/' + action, {method: 'POST'});
      refresh();
    };
    body.appendChild(tr);
  }
}

document.getElementById('add').onsubmit = async (e) => {
  e.preventDefault();
  const form = new FormData(e.target);
  const req = {instrument: form.get('instrument')};
  if (form.get('target_rate')) req.target_rate = form.get('target_rate');
  if (form.get('drop_rate')) req.drop_rate = form.get('drop_rate');
  if (form.get('max_steps')) req.max_steps = Number(form.get('max_steps'));
  const res = await fetch('/api/instruments', {method: 'POST', body: JSON.stringify(req)});
  if (!res.ok) alert((await res.json()).error);
  e.target.reset();
  refresh();
};

const log = document.getElementById('log');
const stream = new EventSource('/api/reports/stream');
function append(ev) {
  const msg = JSON.parse(ev.data);
  const line = document.createElement('div');
  line.className = msg.level;
  line.textContent = msg.ts.substring(11, 19) + ' ' + msg.text;
  log.appendChild(line);
  while (log.childNodes.length > 500) log.removeChild(log.firstChild);
  log.scrollTop = log.scrollHeight;
}
stream.addEventListener('log', append);
stream.addEventListener('report', (ev) => { append(ev); });

refresh();
setInterval(refresh, 3000);
</script>
</body>
</html>
`
