package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/services"
	"github.com/kamal-hamza/tagbox/pkg/ui"
)

// Form field keys
const (
	fieldNewCategory = "new_category"
	fieldURL         = "url"
	fieldTitle       = "title"
	fieldNote        = "note"
	fieldTags        = "tags"
)

// formInput is what the form starts from
type formInput struct {
	Categories []domain.Category
	CategoryID string
	URL        string
	Note       string
	ImageLabel string // non-empty when an image is attached
	Reason     string
}

// formResult is what the user submitted
type formResult struct {
	Submitted   bool
	CategoryID  string
	NewCategory string
	URL         string
	Title       string
	Note        string
	Tags        []string
}

type formField struct {
	key   string
	label string
	input textinput.Model
}

type formKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Left   key.Binding
	Right  key.Binding
	Submit key.Binding
	Cancel key.Binding
}

func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Left, k.Submit, k.Cancel}
}

func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev, k.Left, k.Right, k.Submit, k.Cancel}}
}

var formKeys = formKeyMap{
	Next: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next field"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("shift+tab", "previous field"),
	),
	Left: key.NewBinding(
		key.WithKeys("left"),
		key.WithHelp("←/→", "category"),
	),
	Right: key.NewBinding(
		key.WithKeys("right"),
		key.WithHelp("→", "next category"),
	),
	Submit: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "save"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "cancel"),
	),
}

// formModel is the manual entry form. With categories present the first
// focus stop is the category selector, otherwise a new-category field.
type formModel struct {
	input    formInput
	catIndex int
	fields   []formField
	focus    int
	help     help.Model
	keys     formKeyMap
	err      string
	result   formResult
	done     bool
}

func newFormModel(in formInput) formModel {
	m := formModel{
		input: in,
		help:  help.New(),
		keys:  formKeys,
	}

	for i, c := range in.Categories {
		if c.ID == in.CategoryID {
			m.catIndex = i
			break
		}
	}

	if len(in.Categories) == 0 {
		m.fields = append(m.fields, newFormField(fieldNewCategory, "New category", "e.g. Recipes", "", domain.MaxCategoryNameLength))
	}
	if in.ImageLabel == "" {
		m.fields = append(m.fields, newFormField(fieldURL, "Link", "https://...", in.URL, 2048))
	}
	m.fields = append(m.fields,
		newFormField(fieldTitle, "Title", "optional", "", 200),
		newFormField(fieldNote, "Note", "optional", in.Note, domain.MaxNoteLength),
		newFormField(fieldTags, "Tags", "comma separated", "", 200),
	)

	m.setFocus(0)
	return m
}

func newFormField(key, label, placeholder, value string, limit int) formField {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 50
	ti.SetValue(value)
	return formField{key: key, label: label, input: ti}
}

func (m formModel) hasSelector() bool {
	return len(m.input.Categories) > 0
}

func (m formModel) stops() int {
	if m.hasSelector() {
		return len(m.fields) + 1
	}
	return len(m.fields)
}

// fieldAt maps a focus stop to a field index, or -1 for the selector
func (m formModel) fieldAt(stop int) int {
	if m.hasSelector() {
		return stop - 1
	}
	return stop
}

func (m *formModel) setFocus(stop int) {
	n := m.stops()
	m.focus = ((stop % n) + n) % n
	current := m.fieldAt(m.focus)
	for i := range m.fields {
		if i == current {
			m.fields[i].input.Focus()
		} else {
			m.fields[i].input.Blur()
		}
	}
}

func (m formModel) value(key string) string {
	for _, f := range m.fields {
		if f.key == key {
			return strings.TrimSpace(f.input.Value())
		}
	}
	return ""
}

func (m formModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		onSelector := m.hasSelector() && m.focus == 0

		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.done = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		case msg.String() == "enter":
			if m.focus == m.stops()-1 {
				return m.submit()
			}
			m.setFocus(m.focus + 1)
			return m, nil
		case key.Matches(msg, m.keys.Next):
			m.setFocus(m.focus + 1)
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.setFocus(m.focus - 1)
			return m, nil
		case onSelector && key.Matches(msg, m.keys.Left):
			n := len(m.input.Categories)
			m.catIndex = (m.catIndex - 1 + n) % n
			return m, nil
		case onSelector && key.Matches(msg, m.keys.Right):
			m.catIndex = (m.catIndex + 1) % len(m.input.Categories)
			return m, nil
		}
	}

	idx := m.fieldAt(m.focus)
	if idx < 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.fields[idx].input, cmd = m.fields[idx].input.Update(msg)
	return m, cmd
}

// submit validates the fields and quits with a result
func (m formModel) submit() (tea.Model, tea.Cmd) {
	res := formResult{
		URL:   m.value(fieldURL),
		Title: m.value(fieldTitle),
		Note:  m.value(fieldNote),
		Tags:  domain.ParseTags(m.value(fieldTags)),
	}

	if m.hasSelector() {
		res.CategoryID = m.input.Categories[m.catIndex].ID
	} else {
		res.NewCategory = m.value(fieldNewCategory)
		if err := domain.ValidateCategoryName(res.NewCategory); err != nil {
			m.err = err.Error()
			return m, nil
		}
	}
	if m.input.ImageLabel == "" && res.URL == "" {
		m.err = "a link is required"
		return m, nil
	}
	if err := domain.ValidateNote(res.Note); err != nil {
		m.err = err.Error()
		return m, nil
	}

	res.Submitted = true
	m.result = res
	m.done = true
	return m, tea.Quit
}

func (m formModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(ui.StyleTitle.Render("Save to library"))
	b.WriteString("\n")
	if m.input.Reason != "" {
		b.WriteString(ui.StyleMuted.Render(m.input.Reason))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	label := lipgloss.NewStyle().Width(14)
	focused := label.Foreground(ui.ColorPrimary).Bold(true)
	labelFor := func(stop int, text string) string {
		if stop == m.focus {
			return focused.Render("› " + text)
		}
		return label.Render("  " + text)
	}

	stop := 0
	if m.hasSelector() {
		c := m.input.Categories[m.catIndex]
		choice := ui.FormatSwatch(c.Name, c.Color.TerminalColor())
		if len(m.input.Categories) > 1 {
			choice = fmt.Sprintf("‹ %s ›  %s", choice, ui.StyleMuted.Render(fmt.Sprintf("%d/%d", m.catIndex+1, len(m.input.Categories))))
		}
		b.WriteString(labelFor(stop, "Category") + choice + "\n")
		stop++
	}
	if m.input.ImageLabel != "" {
		b.WriteString(label.Render("  Image") + m.input.ImageLabel + "\n")
	}
	for _, f := range m.fields {
		b.WriteString(labelFor(stop, f.label) + f.input.View() + "\n")
		stop++
	}

	if m.err != "" {
		b.WriteString("\n" + ui.FormatError(m.err) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

// formInputFor builds the form from an ingestion outcome
func formInputFor(out *services.Outcome, categories []domain.Category) formInput {
	p := out.Decision.Prefill
	in := formInput{
		Categories: categories,
		CategoryID: p.CategoryID,
		URL:        p.URL,
		Note:       p.Note,
		Reason:     describeReason(out.Decision.Reason),
	}
	if in.CategoryID == "" && out.Share != nil {
		if c := findCategory(categories, out.Share.CategoryHint); c != nil {
			in.CategoryID = c.ID
		}
	}
	if p.Image != nil {
		in.ImageLabel = fmt.Sprintf("%s (%s)", p.Image.FileName, ui.FormatBytes(p.Image.SizeBytes))
	}
	return in
}

// completeInForm opens the manual form for a deferred share and saves the result
func completeInForm(out *services.Outcome, svc *services.ManualSaveService) error {
	ctx := getContext()

	user, err := requireUser(ctx)
	if err != nil {
		return err
	}
	categories, err := categoryRepo.ListCategories(ctx, user.ID)
	if err != nil {
		return err
	}

	final, err := tea.NewProgram(newFormModel(formInputFor(out, categories))).Run()
	if err != nil {
		return fmt.Errorf("error running form: %w", err)
	}
	res := final.(formModel).result
	if !res.Submitted {
		fmt.Println(ui.FormatMuted("Left pending, run 'tagbox ingest' again or 'tagbox share clear'"))
		return nil
	}

	if res.NewCategory != "" {
		id, err := svc.CreateCategory(ctx, res.NewCategory, "", domain.ColorBlueOcean)
		if err != nil {
			return err
		}
		res.CategoryID = id
		fmt.Println(ui.FormatSuccess("Created category " + res.NewCategory))
	}

	saved, err := svc.Save(ctx, services.ManualEntry{
		CategoryID: res.CategoryID,
		Title:      res.Title,
		URL:        res.URL,
		Note:       res.Note,
		Tags:       res.Tags,
		Image:      out.Decision.Prefill.Image,
		Share:      out.Share,
	})
	if err != nil {
		return err
	}

	fmt.Println(ui.FormatSuccess("Saved to " + categoryLabel(res.CategoryID)))
	fmt.Println(ui.FormatMuted("Container: " + saved.ContainerID))
	return nil
}
