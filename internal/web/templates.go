package web

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/jaminalder/perfect-tic-tac-toe/internal/app"
)

type templates struct {
	game  *template.Template
	board *template.Template
	index *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"rows": func(cells []cellView) [][]cellView {
			out := make([][]cellView, 0, 3)
			for i := 0; i+3 <= len(cells); i += 3 {
				out = append(out, cells[i:i+3])
			}
			return out
		},
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Tic-Tac-Toe</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
</head><body>{{template "content" .}}</body></html>`))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(`<h1>Tic-Tac-Toe</h1><p>You play X and move first. The AI never loses.</p><form action="/game" method="post"><button>New game</button></form>`))
	game := template.Must(template.Must(base.Clone()).New("content").Parse(`
<div hx-ext="sse" sse-connect="/game/{{.ID}}/events">
  <div sse-swap="board" hx-target="#board" hx-swap="outerHTML">{{.BoardHTML}}</div>
</div>`))
	// standalone board template for fragments and SSE events
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{game: game, board: board, index: index}
}

func renderTemplate(t *template.Template, name string, data any) []byte {
	var buf bytes.Buffer
	if name == "" {
		_ = t.Execute(&buf, data)
	} else {
		_ = t.ExecuteTemplate(&buf, name, data)
	}
	return buf.Bytes()
}

const boardTemplate = `<div id="board">
  {{if .Error}}<div class="alert">{{.Error}}</div>{{end}}
  <p id="status">{{.Status}}</p>
  {{range rows .Cells}}
  <div class="row">
    {{range .}}
    <form hx-post="/game/{{.GameID}}/play" hx-target="#board" hx-swap="outerHTML" method="post">
      <input type="hidden" name="cell" value="{{.Index}}">
      <button type="submit" data-index="{{.Index}}"{{if .Disabled}} disabled{{end}}>{{.Symbol}}</button>
    </form>
    {{end}}
  </div>
  {{end}}
  <form hx-post="/game/{{.ID}}/reset" hx-target="#board" hx-swap="outerHTML" method="post">
    <button type="submit" id="reset">Reset</button>
  </form>
</div>
`

type cellView struct {
	GameID   string
	Index    int
	Symbol   string
	Disabled bool
}

type boardView struct {
	ID     string
	Status string
	Error  string
	Cells  []cellView
}

func newBoardView(gs app.GameState, errMsg string) boardView {
	locked := gs.Game.Over || gs.Thinking
	v := boardView{ID: gs.ID, Status: gs.Status(), Error: errMsg, Cells: make([]cellView, len(gs.Game.Board))}
	for i, c := range gs.Game.Board {
		v.Cells[i] = cellView{GameID: gs.ID, Index: i, Symbol: c.String(), Disabled: locked || c.String() != ""}
	}
	return v
}

// ensurePlayerCookie returns the player id cookie, setting a new one if absent.
func ensurePlayerCookie(w http.ResponseWriter, r *http.Request) string {
	if pid := playerCookie(r); pid != "" {
		return pid
	}
	v := app.NewPlayerID()
	http.SetCookie(w, &http.Cookie{Name: playerCookieName, Value: v, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	return v
}

const playerCookieName = "player_id"

func playerCookie(r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil {
		return c.Value
	}
	return ""
}
