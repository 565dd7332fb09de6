package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/scpkg/scpload/image"
	"github.com/scpkg/scpload/loader"
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

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	cfg      *Config
	loader   *loader.Loader
	module   *loader.Module
	filename string
	result   string
	funcs    []*image.FunctionEntry
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

func newInteractiveModel(filename string, cfg *Config) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		cfg:      cfg,
		state:    stateSelectFunc,
	}
}

type loadedMsg struct {
	err    error
	loader *loader.Loader
	module *loader.Module
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	ld := loader.New(m.cfg.loaderOptions()...)
	mod, err := ld.Load(moduleName(m.filename), 1, data)
	if err != nil {
		ld.Close()
		return loadedMsg{err: err}
	}
	return loadedMsg{loader: ld, module: mod}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.loader = msg.loader
		m.module = msg.module
		img := m.module.Image()
		for i := range img.Functions {
			m.funcs = append(m.funcs, &img.Functions[i])
		}
		return m, nil

	case callResultMsg:
		m.err = msg.err
		m.result = msg.result
		m.state = stateShowResult
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateSelectFunc:
			return m.updateSelect(msg)
		case stateInputArgs:
			return m.updateInputs(msg)
		case stateShowResult:
			return m.updateResult(msg)
		}
	}
	return m, nil
}

func (m *interactiveModel) updateSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, m.quit()
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.funcs)-1 {
			m.selected++
		}
	case "enter":
		if len(m.funcs) == 0 {
			return m, nil
		}
		f := m.funcs[m.selected]
		if len(f.Params) == 0 {
			return m, m.callSelected(nil)
		}
		m.prepareInputs(f)
		m.state = stateInputArgs
		return m, textinput.Blink
	}
	return m, nil
}

func (m *interactiveModel) prepareInputs(f *image.FunctionEntry) {
	m.inputs = make([]textinput.Model, len(f.Params))
	for i, p := range f.Params {
		ti := textinput.New()
		ti.Placeholder = p.String()
		ti.CharLimit = 64
		ti.Width = 24
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) updateInputs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, m.quit()
	case "esc":
		m.state = stateSelectFunc
		return m, nil
	case "tab", "shift+tab":
		if msg.String() == "tab" {
			m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
		} else {
			m.focusIdx = (m.focusIdx - 1 + len(m.inputs)) % len(m.inputs)
		}
		cmds := make([]tea.Cmd, len(m.inputs))
		for i := range m.inputs {
			if i == m.focusIdx {
				cmds[i] = m.inputs[i].Focus()
			} else {
				m.inputs[i].Blur()
			}
		}
		return m, tea.Batch(cmds...)
	case "enter":
		values := make([]string, len(m.inputs))
		for i := range m.inputs {
			values[i] = m.inputs[i].Value()
		}
		return m, m.callSelected(values)
	}

	cmd := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmd[i] = m.inputs[i].Update(msg)
	}
	return m, tea.Batch(cmd...)
}

func (m *interactiveModel) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, m.quit()
	case "enter", "esc":
		m.err = nil
		m.state = stateSelectFunc
	}
	return m, nil
}

func (m *interactiveModel) quit() tea.Cmd {
	if m.loader != nil {
		m.loader.Close()
	}
	return tea.Quit
}

func (m *interactiveModel) callSelected(raw []string) tea.Cmd {
	f := m.funcs[m.selected]
	return func() tea.Msg {
		args, err := convertArgs(f, raw)
		if err != nil {
			return callResultMsg{err: err}
		}
		ref := m.module.Function(f.Name)
		if ref == nil {
			return callResultMsg{err: fmt.Errorf("function %q not bound", f.Name)}
		}
		result, err := ref.Invoke(context.Background(), args...)
		if err != nil {
			return callResultMsg{err: err}
		}
		return callResultMsg{result: fmt.Sprintf("%v", result)}
	}
}

// convertArgs parses raw argument strings according to the declared
// parameter types. Arity must match exactly; the loader re-checks the
// dynamic types on invocation.
func convertArgs(f *image.FunctionEntry, raw []string) ([]any, error) {
	if f == nil {
		return nil, fmt.Errorf("unknown function")
	}
	if len(raw) != len(f.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", f.Name, len(f.Params), len(raw))
	}
	args := make([]any, len(raw))
	for i, v := range raw {
		converted, err := convertArg(v, f.Params[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = converted
	}
	return args, nil
}

func convertArg(value string, t image.TypeCode) (any, error) {
	switch t {
	case image.Int8:
		v, err := strconv.ParseInt(value, 10, 8)
		return int8(v), err
	case image.Int16:
		v, err := strconv.ParseInt(value, 10, 16)
		return int16(v), err
	case image.Int32:
		v, err := strconv.ParseInt(value, 10, 32)
		return int32(v), err
	case image.Int64:
		return strconv.ParseInt(value, 10, 64)
	case image.Float32:
		v, err := strconv.ParseFloat(value, 32)
		return float32(v), err
	case image.Float64:
		return strconv.ParseFloat(value, 64)
	case image.Pointer, image.StructRef:
		v, err := strconv.ParseUint(value, 0, 64)
		return uintptr(v), err
	default:
		return nil, fmt.Errorf("cannot parse a %s argument", t)
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.module == nil {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("SCP Runner"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatFunc(f)))
			} else {
				b.WriteString(cursor + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.Params[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(f *image.FunctionEntry) string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = typeStyle.Render(p.String())
	}
	result := ""
	if f.Return != image.Void {
		result = " -> " + typeStyle.Render(f.Return.String())
	}
	return funcStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(filename string, cfg *Config) error {
	p := tea.NewProgram(newInteractiveModel(filename, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
