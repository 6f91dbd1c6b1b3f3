package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/robalobadob/motsrares/internal/game"
	"github.com/robalobadob/motsrares/internal/leaderboard"
	"github.com/robalobadob/motsrares/internal/session"
	"github.com/robalobadob/motsrares/internal/words"
)

// --- STYLING ---

var (
	styleTitle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")).Padding(0, 1)
	styleWord      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	styleCategory  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))
	styleCorrect   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleIncorrect = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleSubtle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleClock     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleBox       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
)

type screen int

const (
	screenQuiz screen = iota
	screenFlashcard
	screenLeaderboard
	screenName
)

// eventMsg wraps a controller event for the update loop.
type eventMsg struct {
	ev session.Event
	ok bool
}

func waitForEvent(ch <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		return eventMsg{ev: ev, ok: ok}
	}
}

type model struct {
	ctrl   *session.Controller
	bank   *words.Bank
	board  *leaderboard.Board
	events <-chan session.Event

	screen    screen
	state     session.State
	outcome   *game.Outcome
	card      words.Entry
	revealed  bool
	message   string
	nameInput textinput.Model
}

func newModel(ctrl *session.Controller, bank *words.Bank, board *leaderboard.Board) (model, error) {
	ti := textinput.New()
	ti.Placeholder = "Votre nom"
	ti.CharLimit = leaderboard.MaxNameLen
	ti.Width = leaderboard.MaxNameLen + 2
	ti.Prompt = "> "

	events, _ := ctrl.Subscribe()
	m := model{
		ctrl:      ctrl,
		bank:      bank,
		board:     board,
		events:    events,
		nameInput: ti,
	}
	if _, err := ctrl.NewRound(); err != nil {
		return m, err
	}
	m.state = ctrl.State()
	return m, nil
}

func (m model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		if !msg.ok {
			return m, tea.Quit
		}
		m.handleEvent(msg.ev)
		return m, waitForEvent(m.events)
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.screen {
		case screenFlashcard:
			return m.updateFlashcard(msg)
		case screenLeaderboard:
			if msg.Type == tea.KeyEsc || msg.String() == "q" {
				m.screen = screenQuiz
			}
			return m, nil
		case screenName:
			return m.updateName(msg)
		default:
			return m.updateQuiz(msg)
		}
	}
	if m.screen == screenName {
		var cmd tea.Cmd
		m.nameInput, cmd = m.nameInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) handleEvent(ev session.Event) {
	m.state = m.ctrl.State()
	switch ev.Type {
	case session.EventSessionEnded:
		end, _ := ev.Payload.(session.SessionEnded)
		if end.Qualifies {
			m.message = fmt.Sprintf("Temps écoulé ! Score final : %d. Entrez votre nom.", end.Score)
			m.screen = screenName
			m.nameInput.SetValue("")
			m.nameInput.Focus()
		} else {
			m.message = fmt.Sprintf("Temps écoulé ! Score final : %d. Pas de place au classement.", end.Score)
		}
	case session.EventError:
		if p, ok := ev.Payload.(session.ErrorPayload); ok {
			m.message = p.Error
		}
	}
}

func (m model) updateQuiz(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q", "esc":
		return m, tea.Quit
	case "1", "2", "3", "4":
		out, err := m.ctrl.SelectAnswer(int(key[0] - '1'))
		if err != nil {
			m.message = err.Error()
			return m, nil
		}
		m.outcome = &out
	case "n", "enter":
		if _, err := m.ctrl.NewRound(); err != nil {
			m.message = err.Error()
			return m, nil
		}
		m.outcome = nil
	case "s":
		if _, err := m.ctrl.ToggleSurvival(); err != nil {
			m.message = err.Error()
			return m, nil
		}
		m.message = ""
	case "f":
		m.nextCard()
		m.screen = screenFlashcard
	case "l":
		m.screen = screenLeaderboard
	}
	m.state = m.ctrl.State()
	return m, nil
}

func (m *model) nextCard() {
	if e, err := m.bank.Sample(&m.card); err == nil {
		m.card = e
	}
	m.revealed = false
}

func (m model) updateFlashcard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case " ":
		m.revealed = !m.revealed
	case "n", "enter":
		m.nextCard()
	case "esc", "q":
		m.screen = screenQuiz
	}
	return m, nil
}

func (m model) updateName(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		_ = m.ctrl.DismissNameEntry()
		m.nameInput.Blur()
		m.screen = screenQuiz
		m.message = ""
		m.state = m.ctrl.State()
		return m, nil
	case tea.KeyEnter:
		rank, err := m.ctrl.SubmitName(context.Background(), m.nameInput.Value())
		switch {
		case errors.Is(err, leaderboard.ErrInvalidName):
			m.message = "Le nom ne peut pas être vide."
			return m, nil
		case errors.Is(err, leaderboard.ErrPersistence):
			m.message = "Impossible d'enregistrer le score, réessayez."
			return m, nil
		case err != nil:
			m.message = err.Error()
		default:
			m.message = fmt.Sprintf("Classé n°%d !", rank)
		}
		m.nameInput.Blur()
		m.screen = screenLeaderboard
		m.state = m.ctrl.State()
		return m, nil
	}
	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

// --- VIEWS ---

func (m model) View() string {
	var body string
	switch m.screen {
	case screenFlashcard:
		body = m.viewFlashcard()
	case screenLeaderboard:
		body = m.viewLeaderboard()
	case screenName:
		body = m.viewName()
	default:
		body = m.viewQuiz()
	}
	header := styleTitle.Render(fmt.Sprintf("Mots rares · %d mots", m.bank.Len()))
	out := header + "\n\n" + body
	if m.message != "" {
		out += "\n\n" + m.message
	}
	return out + "\n"
}

func (m model) viewQuiz() string {
	var b strings.Builder
	st := m.state

	status := fmt.Sprintf("Score : %d", st.Score)
	if st.Mode == game.ModeSurvival {
		status += "   " + styleClock.Render(fmt.Sprintf("⏱ %ds", st.Timer.Remaining))
	}
	b.WriteString(status + "\n\n")

	if st.Round == nil {
		b.WriteString(styleSubtle.Render("Appuyez sur n pour commencer."))
		return b.String()
	}
	b.WriteString(styleWord.Render(st.Round.Word) + "  " + styleCategory.Render(st.Round.Category) + "\n\n")
	for i, choice := range st.Round.Choices {
		line := fmt.Sprintf("%d. %s", i+1, choice)
		if st.Round.Answered {
			switch {
			case st.Round.Correct[i]:
				line = styleCorrect.Render(line)
			case st.Round.Selected != nil && *st.Round.Selected == i:
				line = styleIncorrect.Render(line)
			}
		}
		b.WriteString(line + "\n")
	}
	if m.outcome != nil {
		if m.outcome.Correct {
			b.WriteString("\n" + styleCorrect.Render("Bonne réponse !"))
		} else {
			b.WriteString("\n" + styleIncorrect.Render("Mauvaise réponse."))
		}
	}
	b.WriteString("\n\n" + styleSubtle.Render("1-4 répondre · n suivant · s survie · f flashcards · l classement · q quitter"))
	return b.String()
}

func (m model) viewFlashcard() string {
	content := styleWord.Render(m.card.Word) + "\n" + styleCategory.Render(m.card.Category)
	if m.revealed {
		content += "\n\n" + m.card.Definition
	} else {
		content += "\n\n" + styleSubtle.Render("espace pour révéler")
	}
	return styleBox.Render(content) + "\n\n" + styleSubtle.Render("espace révéler · n suivant · esc retour")
}

func (m model) viewLeaderboard() string {
	entries := m.board.Entries()
	if len(entries) == 0 {
		return styleSubtle.Render("Aucun score pour l'instant.") + "\n\n" + styleSubtle.Render("esc retour")
	}
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%2d. %-20s %4d  %s\n", i+1, e.Name, e.Score, styleSubtle.Render(e.Date))
	}
	b.WriteString("\n" + styleSubtle.Render("esc retour"))
	return b.String()
}

func (m model) viewName() string {
	return "Nouveau record !\n\n" + m.nameInput.View() + "\n\n" + styleSubtle.Render("entrée valider · esc ignorer")
}
