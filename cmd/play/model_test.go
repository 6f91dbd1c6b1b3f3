package main

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/robalobadob/motsrares/internal/game"
	"github.com/robalobadob/motsrares/internal/kv"
	"github.com/robalobadob/motsrares/internal/leaderboard"
	"github.com/robalobadob/motsrares/internal/session"
	"github.com/robalobadob/motsrares/internal/words"
)

func testModel(t *testing.T) model {
	t.Helper()
	entries := []words.Entry{
		{Word: "abscons", Category: "Adjectif", Definition: "obscur"},
		{Word: "faconde", Category: "Nom féminin", Definition: "facilité de parole"},
		{Word: "hapax", Category: "Nom masculin", Definition: "occurrence unique"},
		{Word: "hiémal", Category: "Adjectif", Definition: "relatif à l'hiver"},
		{Word: "vespéral", Category: "Adjectif", Definition: "relatif au soir"},
	}
	bank, err := words.New(entries, rand.New(rand.NewPCG(9, 9)))
	if err != nil {
		t.Fatal(err)
	}
	eng, err := game.NewEngine(bank)
	if err != nil {
		t.Fatal(err)
	}
	board, err := leaderboard.Load(context.Background(), kv.NewMemory())
	if err != nil {
		t.Fatal(err)
	}
	ctrl := session.New(eng, board, session.Options{InitialSeconds: 2, TickInterval: time.Hour})
	t.Cleanup(ctrl.Close)

	m, err := newModel(ctrl, bank, board)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func press(t *testing.T, m model, key string) model {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(model)
}

func TestQuizAnswerAndNextRound(t *testing.T) {
	m := testModel(t)
	if m.state.Round == nil {
		t.Fatal("expected a round on start")
	}
	first := m.state.Round.Word

	m = press(t, m, "2")
	if !m.state.Round.Answered || m.outcome == nil || m.outcome.Selected != 1 {
		t.Fatalf("answer not recorded: %+v", m.state.Round)
	}
	if !strings.Contains(m.View(), "réponse") {
		t.Fatal("expected feedback in view")
	}

	m = press(t, m, "n")
	if m.state.Round.Answered || m.state.Round.Word == first {
		t.Fatalf("expected fresh round with a new word, got %+v", m.state.Round)
	}
}

func TestSurvivalToggleShowsClock(t *testing.T) {
	m := testModel(t)
	m = press(t, m, "s")
	if m.state.Mode != game.ModeSurvival {
		t.Fatalf("expected survival mode, got %s", m.state.Mode)
	}
	if !strings.Contains(m.View(), "2s") {
		t.Fatalf("expected clock in view:\n%s", m.View())
	}
}

func TestFlashcardReveal(t *testing.T) {
	m := testModel(t)
	m = press(t, m, "f")
	if m.screen != screenFlashcard || m.card.Word == "" {
		t.Fatalf("expected flashcard screen with a card")
	}
	if strings.Contains(m.View(), m.card.Definition) {
		t.Fatal("definition shown before reveal")
	}
	m = press(t, m, " ")
	if !strings.Contains(m.View(), m.card.Definition) {
		t.Fatal("definition hidden after reveal")
	}
	m = press(t, m, "esc")
	if m.screen != screenQuiz {
		t.Fatal("expected back on quiz")
	}
}

func TestNameEntryAfterExpiry(t *testing.T) {
	m := testModel(t)
	m = press(t, m, "s")
	for i := 0; i < 2; i++ {
		if _, err := m.ctrl.TickClock(); err != nil {
			t.Fatal(err)
		}
	}
	m.handleEvent(session.Event{Type: session.EventSessionEnded, Payload: session.SessionEnded{Score: 0, Qualifies: true}})
	if m.screen != screenName {
		t.Fatalf("expected name screen, got %d", m.screen)
	}

	m = press(t, m, "enter")
	if m.screen != screenName || !strings.Contains(m.message, "vide") {
		t.Fatalf("empty name should keep the prompt, message %q", m.message)
	}

	m.nameInput.SetValue("Zoé")
	m = press(t, m, "enter")
	if m.screen != screenLeaderboard {
		t.Fatalf("expected leaderboard screen, got %d", m.screen)
	}
	if entries := m.board.Entries(); len(entries) != 1 || entries[0].Name != "Zoé" {
		t.Fatalf("unexpected board: %+v", entries)
	}
}
