package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/transport"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	appStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const (
	fieldOwner = iota
	fieldApp
	fieldPayload
	fieldCount
)

const maxHistory = 8

type modelState int

const (
	stateInput modelState = iota
	stateCalling
	stateShowResult
)

type call struct {
	inv     message.Invocation
	reply   message.Reply
	err     error
	elapsed time.Duration
}

type interactiveModel struct {
	client   *transport.Client
	inputs   []textinput.Model
	focusIdx int
	state    modelState
	last     call
	history  []call
}

type callResultMsg call

func newInteractiveModel(client *transport.Client, owner, app string) *interactiveModel {
	m := &interactiveModel{client: client, inputs: make([]textinput.Model, fieldCount)}
	for i, f := range []struct{ prompt, placeholder, value string }{
		{"owner:   ", "zhur", owner},
		{"app:     ", "echo", app},
		{"payload: ", "request body", ""},
	} {
		ti := textinput.New()
		ti.Prompt = f.prompt
		ti.Placeholder = f.placeholder
		ti.SetValue(f.value)
		ti.Width = 48
		m.inputs[i] = ti
	}
	// start where input is still missing
	switch {
	case owner == "":
		m.focusIdx = fieldOwner
	case app == "":
		m.focusIdx = fieldApp
	default:
		m.focusIdx = fieldPayload
	}
	m.inputs[m.focusIdx].Focus()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "tab", "down":
			if m.state == stateInput {
				m.focus((m.focusIdx + 1) % fieldCount)
			}
			return m, nil

		case "shift+tab", "up":
			if m.state == stateInput {
				m.focus((m.focusIdx + fieldCount - 1) % fieldCount)
			}
			return m, nil

		case "enter":
			switch m.state {
			case stateInput:
				if m.inputs[fieldOwner].Value() == "" || m.inputs[fieldApp].Value() == "" {
					return m, nil
				}
				m.state = stateCalling
				return m, m.invoke(message.Invocation{
					Owner:   m.inputs[fieldOwner].Value(),
					AppName: m.inputs[fieldApp].Value(),
					Payload: []byte(m.inputs[fieldPayload].Value()),
				})
			case stateShowResult:
				m.state = stateInput
			}
			return m, nil

		case "esc":
			if m.state == stateShowResult {
				m.state = stateInput
				return m, nil
			}
			if m.state == stateInput {
				return m, tea.Quit
			}
		}

	case callResultMsg:
		m.last = call(msg)
		m.history = append([]call{m.last}, m.history...)
		if len(m.history) > maxHistory {
			m.history = m.history[:maxHistory]
		}
		m.state = stateShowResult
		return m, nil
	}

	if m.state == stateInput {
		var cmd tea.Cmd
		m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) focus(i int) {
	m.inputs[m.focusIdx].Blur()
	m.focusIdx = i
	m.inputs[m.focusIdx].Focus()
}

func (m *interactiveModel) invoke(inv message.Invocation) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		rep, err := invoke(context.Background(), m.client, inv)
		return callResultMsg{inv: inv, reply: rep, err: err, elapsed: time.Since(start)}
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("zhur"))
	b.WriteString(" ")
	b.WriteString(m.client.Endpoint().String())
	b.WriteString("\n\n")

	switch m.state {
	case stateInput:
		for _, in := range m.inputs {
			b.WriteString(in.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter invoke • esc quit"))

	case stateCalling:
		b.WriteString("Invoking ")
		b.WriteString(appStyle.Render(m.inputs[fieldOwner].Value() + "/" + m.inputs[fieldApp].Value()))
		b.WriteString("...")

	case stateShowResult:
		b.WriteString(fmt.Sprintf("Result of %s (%s):\n\n", appStyle.Render(m.last.inv.Owner+"/"+m.last.inv.AppName), m.last.elapsed.Round(time.Microsecond)))
		b.WriteString(renderOutcome(m.last))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • ctrl+c quit"))
	}

	if len(m.history) > 1 {
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("recent:"))
		for _, c := range m.history[1:] {
			b.WriteString("\n  ")
			b.WriteString(appStyle.Render(c.inv.Owner + "/" + c.inv.AppName))
			b.WriteString(" ")
			b.WriteString(summary(c))
		}
	}
	return b.String()
}

func renderOutcome(c call) string {
	switch {
	case c.err != nil:
		return errorStyle.Render(fmt.Sprintf("Error: %v", c.err))
	case !c.reply.OK():
		return errorStyle.Render(fmt.Sprintf("%s: %v", c.reply.Err.Class(), c.reply.Err))
	}
	return resultStyle.Render(string(c.reply.Output))
}

func summary(c call) string {
	switch {
	case c.err != nil:
		return errorStyle.Render("error")
	case !c.reply.OK():
		return errorStyle.Render(c.reply.Err.Class().String())
	}
	return resultStyle.Render(fmt.Sprintf("%d bytes", len(c.reply.Output)))
}

func runInteractive(client *transport.Client, owner, app string) error {
	p := tea.NewProgram(newInteractiveModel(client, owner, app), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
