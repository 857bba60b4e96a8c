package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/rules-engine/internal/handlers"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/check"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const PlaceHolderText = "Type a command, e.g. /attack player:hero monster:goblin"

const helpText = `Commands:
• /check <type> <actor> [target] [dc] - Resolve a check
• /attack <actor> <target> - Attack and wait for the result
• /queue <actor> <target> - Queue an attack for the worker
• /show - Reload the encounter
• /copy - Copy the last JSON response
• /help - Show this help
• Ctrl+C - Quit

Actors and targets are written type:id, e.g. player:hero.`

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	api          *apiClient
	encounter    *encounter.Encounter
	logViewport  viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	entries      []logEntry
	lastJSON     []byte
	ready        bool
	width        int
	height       int
	loading      bool

	showQuitModal bool
	progressTick  int

	ctx    context.Context
	cancel context.CancelFunc
	events chan SSEEvent
}

type logEntry struct {
	style  lipgloss.Style
	prefix string
	text   string
}

type encounterMsg struct {
	encounter *encounter.Encounter
	raw       []byte
	err       error
}

type checkResultMsg struct {
	result *check.Result
	raw    []byte
	err    error
}

type actionResultMsg struct {
	result *combat.ActionResult
	raw    []byte
	err    error
}

type queuedMsg struct {
	requestID string
	err       error
}

type sseMsg struct {
	event SSEEvent
}

type sseClosedMsg struct {
	err error
}

type progressTickMsg struct{}

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")) // purple

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

var titleCaser = cases.Title(language.English)

func NewConsoleUI(cfg *ConsoleConfig, api *apiClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	logVp := viewport.New(50, 20)
	logVp.MouseWheelEnabled = true

	ctx, cancel := context.WithCancel(context.Background())
	return ConsoleUI{
		config:       cfg,
		api:          api,
		textarea:     ta,
		logViewport:  logVp,
		metaViewport: viewport.New(20, 20),
		entries: []logEntry{
			{style: promptStyle, text: helpText},
		},
		ctx:    ctx,
		cancel: cancel,
		events: make(chan SSEEvent, 16),
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.loadEncounter(),
		m.listen(),
		waitForEvent(m.events),
	)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.logViewport, vpCmd = m.logViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		logWidth := int(float64(m.width)*0.7) - 4
		metaWidth := m.width - logWidth - 6
		m.logViewport.Width = logWidth - 2
		m.logViewport.Height = m.height - 6
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(logWidth - 4)
		m.ready = true

		m.writeLogContent()
		m.metaViewport.SetContent(writeMetadata(m.config, m.encounter))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			return m.handleCommand(input)
		}

	case encounterMsg:
		m.loading = false
		if msg.err != nil {
			m.appendError(msg.err)
			break
		}
		m.encounter = msg.encounter
		m.lastJSON = msg.raw
		m.metaViewport.SetContent(writeMetadata(m.config, m.encounter))

	case checkResultMsg:
		m.loading = false
		if msg.err != nil {
			m.appendError(msg.err)
			break
		}
		m.lastJSON = msg.raw
		m.appendEntry(outcomeStyle(msg.result.Outcome.Status), describeStatus(msg.result.Outcome.Status)+": ", formatCheck(msg.result))

	case actionResultMsg:
		m.loading = false
		if msg.err != nil {
			m.appendError(msg.err)
			break
		}
		m.lastJSON = msg.raw
		style := failureStyle
		if msg.result.Success {
			style = successStyle
		}
		m.appendEntry(style, titleCaser.String(msg.result.ActionType)+": ", msg.result.Description)
		return m, m.loadEncounter()

	case queuedMsg:
		m.loading = false
		if msg.err != nil {
			m.appendError(msg.err)
			break
		}
		m.appendEntry(promptStyle, "Queued: ", msg.requestID)

	case sseMsg:
		cmds := []tea.Cmd{waitForEvent(m.events)}
		if text := describeEvent(msg.event); text != "" {
			m.appendEntry(eventStyle, "» ", text)
		}
		if msg.event.Type == "request.completed" || msg.event.Type == "combat.action" {
			cmds = append(cmds, m.loadEncounter())
		}
		return m, tea.Batch(cmds...)

	case sseClosedMsg:
		if msg.err != nil {
			m.appendError(fmt.Errorf("event stream closed: %w", msg.err))
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeLogContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.logViewport, vpCmd = m.logViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	m.appendEntry(userStyle, "> ", input)

	fields := strings.Fields(input)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "/help":
		m.appendEntry(promptStyle, "", helpText)
		return m, nil

	case "/show":
		return m.startLoading(m.loadEncounter())

	case "/copy":
		if len(m.lastJSON) == 0 {
			m.appendEntry(promptStyle, "", "Nothing to copy yet.")
			return m, nil
		}
		if err := clipboard.WriteAll(prettyJSON(m.lastJSON)); err != nil {
			m.appendError(fmt.Errorf("failed to copy: %w", err))
			return m, nil
		}
		m.appendEntry(promptStyle, "", "Copied the last response to the clipboard.")
		return m, nil

	case "/check":
		req, err := m.parseCheck(args)
		if err != nil {
			m.appendError(err)
			return m, nil
		}
		return m.startLoading(m.resolveCheck(req))

	case "/attack", "/queue":
		if len(args) != 2 {
			m.appendError(fmt.Errorf("usage: %s <actor> <target>", cmd))
			return m, nil
		}
		req, err := m.parseAttack(args[0], args[1])
		if err != nil {
			m.appendError(err)
			return m, nil
		}
		if cmd == "/queue" {
			return m.startLoading(m.queueAction(req))
		}
		return m.startLoading(m.performAction(req))

	case "/quit":
		m.showQuitModal = true
		return m, nil
	}

	m.appendError(fmt.Errorf("unknown command %s, try /help", fields[0]))
	return m, nil
}

func (m ConsoleUI) startLoading(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.loading = true
	m.progressTick = 0
	m.writeLogContent()
	return m, tea.Batch(cmd, progressTick())
}

func (m ConsoleUI) parseCheck(args []string) (handlers.CheckRequest, error) {
	if len(args) < 2 {
		return handlers.CheckRequest{}, fmt.Errorf("usage: /check <type> <actor> [target] [dc]")
	}
	a, err := parseRef(args[1])
	if err != nil {
		return handlers.CheckRequest{}, err
	}
	req := handlers.CheckRequest{
		TenantID:  m.config.TenantID,
		CheckType: args[0],
		Actor:     a,
	}
	for _, arg := range args[2:] {
		if dc, err := strconv.Atoi(arg); err == nil {
			req.Difficulty = &dc
			continue
		}
		t, err := parseRef(arg)
		if err != nil {
			return handlers.CheckRequest{}, err
		}
		req.Target = &t
	}
	return req, nil
}

func (m ConsoleUI) parseAttack(actorArg, targetArg string) (handlers.ActionRequest, error) {
	a, err := parseRef(actorArg)
	if err != nil {
		return handlers.ActionRequest{}, err
	}
	t, err := parseRef(targetArg)
	if err != nil {
		return handlers.ActionRequest{}, err
	}
	return handlers.ActionRequest{
		TenantID: m.config.TenantID,
		Actor:    a,
		Action: combat.Action{
			Type:       combat.ActionAttack,
			TargetID:   t.ID,
			TargetType: t.Type,
		},
	}, nil
}

// parseRef reads "type:id".
func parseRef(s string) (actor.Ref, error) {
	t, id, ok := strings.Cut(s, ":")
	if !ok || t == "" || id == "" {
		return actor.Ref{}, fmt.Errorf("%q should be written type:id, e.g. player:hero", s)
	}
	return actor.Ref{ID: id, Type: actor.Type(t)}, nil
}

func (m *ConsoleUI) appendEntry(style lipgloss.Style, prefix, text string) {
	m.entries = append(m.entries, logEntry{style: style, prefix: prefix, text: text})
	m.writeLogContent()
}

func (m *ConsoleUI) appendError(err error) {
	m.appendEntry(errorStyle, "Error: ", err.Error())
}

// writeLogContent re-wraps every entry for the current viewport width.
func (m *ConsoleUI) writeLogContent() {
	width := m.logViewport.Width - 6
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("RULES ENGINE") + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, e := range m.entries {
		body := wordwrap.String(e.text, width-len(e.prefix))
		if e.prefix != "" {
			content.WriteString(e.style.Render(e.prefix) + body + "\n\n")
		} else {
			content.WriteString(e.style.Render(body) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.logViewport.SetContent(content.String())
	m.logViewport.GotoBottom()
}

func writeMetadata(cfg *ConsoleConfig, enc *encounter.Encounter) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("ENCOUNTER") + "\n\n")

	content.WriteString("Tenant:\n")
	content.WriteString(cfg.TenantID + "\n\n")

	content.WriteString("Encounter ID:\n")
	content.WriteString(cfg.EncounterID.String()[:8] + "...\n\n")

	if enc == nil {
		content.WriteString("Not loaded\n")
		return content.String()
	}

	content.WriteString("Status:\n")
	content.WriteString(titleCaser.String(strings.ToLower(string(enc.Status))) + "\n\n")

	content.WriteString("Turn:\n")
	content.WriteString(fmt.Sprintf("%d\n\n", enc.TurnNumber))

	content.WriteString("Participants:\n")
	participants := append([]encounter.Participant(nil), enc.Participants...)
	sort.Slice(participants, func(i, j int) bool { return participants[i].ID < participants[j].ID })
	for _, p := range participants {
		hp := fmt.Sprintf("%d", p.CurrentHP)
		if p.MaxHP > 0 {
			hp = fmt.Sprintf("%d/%d", p.CurrentHP, p.MaxHP)
		}
		line := fmt.Sprintf("• %s:%s %s HP\n", p.Type, p.ID, hp)
		if p.CurrentHP <= 0 {
			line = errorStyle.Render(line)
		}
		content.WriteString(line)
	}

	content.WriteString("\nLog:\n")
	content.WriteString(fmt.Sprintf("%d entries\n", len(enc.CombatLog)))
	return content.String()
}

func describeStatus(s check.Status) string {
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

func outcomeStyle(s check.Status) lipgloss.Style {
	switch s {
	case check.StatusSuccess, check.StatusCriticalSuccess:
		return successStyle
	case check.StatusValueDetermined:
		return userStyle
	default:
		return failureStyle
	}
}

func formatCheck(r *check.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s rolled %s %v, used %d", r.CheckType, r.DiceNotation, r.RawRolls, r.RollUsed)
	for _, d := range r.ModifierDetails {
		fmt.Fprintf(&b, ", %+d %s", d.Value, d.Source)
	}
	fmt.Fprintf(&b, " = %d", r.FinalValue)
	if r.Difficulty != nil {
		fmt.Fprintf(&b, " vs DC %d", *r.Difficulty)
	}
	b.WriteString(". " + r.Outcome.Description)
	return b.String()
}

func describeEvent(e SSEEvent) string {
	data, _ := e.Data["data"].(map[string]any)
	requestID, _ := e.Data["request_id"].(string)
	if len(requestID) > 8 {
		requestID = requestID[:8]
	}

	switch e.Type {
	case "connected":
		return "Listening for encounter events"
	case "request.processing":
		return fmt.Sprintf("%s processing", requestID)
	case "request.completed":
		result, _ := data["result"].(map[string]any)
		desc, _ := result["description"].(string)
		return fmt.Sprintf("%s completed: %s", requestID, desc)
	case "request.failed":
		return fmt.Sprintf("%s failed: %v", requestID, data["error"])
	case "combat.action":
		if details, ok := data["details"].(map[string]any); ok {
			if desc, ok := details["description"].(string); ok && desc != "" {
				return desc
			}
		}
		return fmt.Sprintf("%v", data["event_type"])
	}
	// request.queued echoes our own command
	return ""
}

func prettyJSON(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func (m ConsoleUI) loadEncounter() tea.Cmd {
	return func() tea.Msg {
		enc, raw, err := m.api.getEncounter(m.config.TenantID, m.config.EncounterID)
		return encounterMsg{enc, raw, err}
	}
}

func (m ConsoleUI) resolveCheck(req handlers.CheckRequest) tea.Cmd {
	return func() tea.Msg {
		res, raw, err := m.api.resolveCheck(req)
		return checkResultMsg{res, raw, err}
	}
}

func (m ConsoleUI) performAction(req handlers.ActionRequest) tea.Cmd {
	return func() tea.Msg {
		res, raw, err := m.api.performAction(m.config.EncounterID, req)
		return actionResultMsg{res, raw, err}
	}
}

func (m ConsoleUI) queueAction(req handlers.ActionRequest) tea.Cmd {
	return func() tea.Msg {
		id, err := m.api.queueAction(m.config.EncounterID, req)
		return queuedMsg{id, err}
	}
}

// listen blocks on the event stream for the life of the program.
func (m ConsoleUI) listen() tea.Cmd {
	return func() tea.Msg {
		return sseClosedMsg{m.api.listenToSSE(m.ctx, m.config.EncounterID, m.events)}
	}
}

func waitForEvent(ch <-chan SSEEvent) tea.Cmd {
	return func() tea.Msg {
		return sseMsg{<-ch}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			m.cancel()
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				m.cancel()
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Leave the console? The encounter stays as it is.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	logWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - logWidth - 6

	logPanel := logPanelStyle.Width(logWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.logViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", logWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, logPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.logViewport.Width - 6
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
