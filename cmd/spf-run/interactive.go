package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Sunscreen-tech/spf-runner/keys"
	"github.com/Sunscreen-tech/spf-runner/param"
	"github.com/Sunscreen-tech/spf-runner/runner"
	"github.com/Sunscreen-tech/spf-runner/sim"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	gasStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type workbenchModel struct {
	err      error
	eng      *sim.Engine
	prog     *sim.Program
	cipher   *keys.Cipher
	filename string
	keyfile  string
	funcs    []funcInfo
	input    textinput.Model
	outputs  []outputInfo
	gas      uint64
	selected int
	state    modelState
}

type funcInfo struct {
	name string
	sig  string
}

type outputInfo struct {
	width param.BitWidth
	value uint64
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateComposeParams
	stateShowResult
)

func newWorkbenchModel(filename, keyfile string) *workbenchModel {
	return &workbenchModel{
		filename: filename,
		keyfile:  keyfile,
		state:    stateSelectFunc,
	}
}

type loadedMsg struct {
	err    error
	eng    *sim.Engine
	prog   *sim.Program
	cipher *keys.Cipher
	funcs  []funcInfo
}

type runResultMsg struct {
	err     error
	outputs []outputInfo
	gas     uint64
}

func (m *workbenchModel) Init() tea.Cmd {
	return m.loadWorkbench
}

func (m *workbenchModel) loadWorkbench() tea.Msg {
	ctx := context.Background()

	key, err := keys.Load(m.keyfile)
	if err != nil {
		return loadedMsg{err: err}
	}
	cipher := key.Cipher()

	eng, err := sim.New(ctx, cipher, sim.Options{})
	if err != nil {
		return loadedMsg{err: err}
	}

	image, err := os.ReadFile(m.filename)
	if err != nil {
		eng.Close(ctx)
		return loadedMsg{err: err}
	}
	loaded, err := eng.LoadProgram(ctx, image)
	if err != nil {
		eng.Close(ctx)
		return loadedMsg{err: err}
	}
	prog := loaded.(*sim.Program)

	exports := prog.Exports()
	funcs := make([]funcInfo, 0, len(exports))
	for name, sig := range exports {
		funcs = append(funcs, funcInfo{name: name, sig: sig})
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].name < funcs[j].name })

	return loadedMsg{eng: eng, prog: prog, cipher: cipher, funcs: funcs}
}

func (m *workbenchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m.quit()

		case "q":
			if m.state != stateComposeParams {
				return m.quit()
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.prepareInput()
				m.state = stateComposeParams

			case stateComposeParams:
				return m, m.runFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.outputs = nil
				m.gas = 0
				m.err = nil
			}

		case "esc":
			switch m.state {
			case stateComposeParams:
				m.state = stateSelectFunc
			case stateShowResult:
				m.state = stateSelectFunc
				m.outputs = nil
				m.gas = 0
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.eng = msg.eng
		m.prog = msg.prog
		m.cipher = msg.cipher
		m.funcs = msg.funcs

	case runResultMsg:
		m.outputs = msg.outputs
		m.gas = msg.gas
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateComposeParams {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *workbenchModel) quit() (tea.Model, tea.Cmd) {
	if m.eng != nil {
		m.eng.Close(context.Background())
	}
	return m, tea.Quit
}

func (m *workbenchModel) prepareInput() {
	ti := textinput.New()
	ti.Placeholder = "ct:u16=41 out:u16*1"
	ti.Prompt = "params: "
	ti.Width = 60
	ti.Focus()
	m.input = ti
}

func (m *workbenchModel) runFunction() tea.Msg {
	ctx := context.Background()

	params, err := parseParams(m.input.Value(), m.cipher.Encrypt)
	if err != nil {
		return runResultMsg{err: err}
	}

	f := m.funcs[m.selected]
	res, err := runner.NewWithDefaults(m.eng, m.prog).Run(ctx, f.name, params)
	if err != nil {
		return runResultMsg{err: err}
	}

	outputs := make([]outputInfo, len(res.Outputs))
	for i, ct := range res.Outputs {
		v, err := m.cipher.Decrypt(ct)
		if err != nil {
			return runResultMsg{err: err}
		}
		outputs[i] = outputInfo{width: ct.Width, value: v}
	}
	return runResultMsg{outputs: outputs, gas: res.GasConsumed}
}

func (m *workbenchModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.funcs == nil {
		return "Loading program..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("SPF Runner"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to run:\n\n")
		for i, f := range m.funcs {
			line := funcStyle.Render(f.name) + typeStyle.Render(f.sig)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> ") + line)
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter compose • q quit"))

	case stateComposeParams:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Parameters for %s\n\n", funcStyle.Render(f.name)))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("ct:u16=41  cts:u16=1,2  out:u16*1  pt:u8=7  pts:u32=1,2"))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter run • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			for i, out := range m.outputs {
				b.WriteString(resultStyle.Render(fmt.Sprintf("  [%d] u%d = %d", i, out.width, out.value)))
				b.WriteString("\n")
			}
			b.WriteString("\n")
			b.WriteString(gasStyle.Render(fmt.Sprintf("  gas consumed: %d", m.gas)))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(filename, keyfile string) error {
	p := tea.NewProgram(newWorkbenchModel(filename, keyfile), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
