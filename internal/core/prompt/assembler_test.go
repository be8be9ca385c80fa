package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBuildEndsWithQuestion(t *testing.T) {
	a := NewAssembler(0)
	pages := []string{"Invoice 42.", "Line items.", "Total: 100 EUR."}

	got := a.Build(pages, "What is the total?")

	if !strings.HasSuffix(got, "What is the total?") {
		t.Fatalf("prompt does not end with the question: %q", got)
	}
	if !strings.HasPrefix(got, DefaultInstruction) {
		t.Errorf("prompt does not start with the instruction")
	}
	if !strings.Contains(got, "Invoice 42.\nLine items.\nTotal: 100 EUR.") {
		t.Errorf("pages not joined in order: %q", got)
	}
}

func TestBuildKeepsQuestionVerbatim(t *testing.T) {
	questions := []string{
		"What is the total?",
		"  leading and trailing spaces  ",
		"Ünïcödé «quoted» \"text\"?\nsecond line",
		strings.Repeat("very long question ", 50),
	}
	a := NewAssembler(400)
	pages := []string{strings.Repeat("Filler sentence. ", 100)}

	for _, q := range questions {
		got := a.Build(pages, q)
		if !strings.HasSuffix(got, q) {
			t.Errorf("question %q not preserved at the end of %q", q, got)
		}
	}
}

func TestBuildDropsWholePagesFromEnd(t *testing.T) {
	pages := []string{
		strings.Repeat("a", 100),
		strings.Repeat("b", 100),
		strings.Repeat("c", 100),
	}
	question := "Which letters?"
	fixed := utf8.RuneCountInString(DefaultInstruction + contextHeader + questionHeader + question)

	// Room for exactly two pages and their separator.
	a := NewAssembler(fixed + 201)
	got := a.Build(pages, question)

	if n := utf8.RuneCountInString(got); n > a.Budget {
		t.Fatalf("prompt length %d exceeds budget %d", n, a.Budget)
	}
	if !strings.Contains(got, pages[0]+"\n"+pages[1]) {
		t.Errorf("first two pages not kept intact")
	}
	if strings.Contains(got, pages[2][:10]) {
		t.Errorf("third page should have been dropped")
	}
	if !strings.HasSuffix(got, question) {
		t.Errorf("question missing from the end")
	}
}

func TestBuildClipsFirstPageAtSentence(t *testing.T) {
	page := "First sentence here. Second sentence follows. Third one is long and will not fit at all."
	question := "Q?"
	fixed := utf8.RuneCountInString(DefaultInstruction + contextHeader + questionHeader + question)

	a := NewAssembler(fixed + 50)
	ctx := a.Context([]string{page}, question)

	if ctx != "First sentence here. Second sentence follows." {
		t.Fatalf("context = %q", ctx)
	}
	if n := utf8.RuneCountInString(a.Build([]string{page}, question)); n > a.Budget {
		t.Errorf("prompt length %d exceeds budget %d", n, a.Budget)
	}
}

func TestBuildClipsAtWordWhenNoSentence(t *testing.T) {
	page := "alpha bravo charlie delta echo foxtrot golf hotel"
	question := "Q?"
	fixed := utf8.RuneCountInString(DefaultInstruction + contextHeader + questionHeader + question)

	a := NewAssembler(fixed + 22)
	ctx := a.Context([]string{page}, question)

	if ctx != "alpha bravo charlie" {
		t.Fatalf("context = %q", ctx)
	}
}

func TestBuildQuestionLargerThanBudget(t *testing.T) {
	a := NewAssembler(50)
	q := strings.Repeat("why ", 40)

	got := a.Build([]string{"some page"}, q)

	if strings.Contains(got, "some page") {
		t.Errorf("context should be empty when the question leaves no room")
	}
	if !strings.HasSuffix(got, q) {
		t.Errorf("question truncated")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a := NewAssembler(300)
	pages := []string{strings.Repeat("Sentence one. ", 30), "tail"}
	first := a.Build(pages, "Same?")
	for i := 0; i < 5; i++ {
		if got := a.Build(pages, "Same?"); got != first {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestBuildSkipsPastBlankCoverPage(t *testing.T) {
	a := NewAssembler(500)
	question := "Q?"
	pages := []string{"", strings.Repeat("Real text. ", 100)}

	ctx := a.Context(pages, question)

	if !strings.Contains(ctx, "Real text.") {
		t.Fatalf("context has no document text: %q", ctx)
	}
	if !strings.HasSuffix(ctx, ".") {
		t.Errorf("context not clipped at a sentence: %q", ctx)
	}
	if n := utf8.RuneCountInString(a.Build(pages, question)); n > a.Budget {
		t.Errorf("prompt length %d exceeds budget %d", n, a.Budget)
	}
}

func TestBuildClipsPageAfterWholePages(t *testing.T) {
	pages := []string{"Short first page.", strings.Repeat("Second page sentence. ", 20)}
	question := "Q?"
	fixed := utf8.RuneCountInString(DefaultInstruction + contextHeader + questionHeader + question)

	a := NewAssembler(fixed + 60)
	ctx := a.Context(pages, question)

	if !strings.HasPrefix(ctx, pages[0]+"\n") {
		t.Fatalf("first page not kept whole: %q", ctx)
	}
	if !strings.Contains(ctx, "Second page sentence.") {
		t.Errorf("room left after the first page was not used: %q", ctx)
	}
	if utf8.RuneCountInString(ctx) > 60 {
		t.Errorf("context %d runes exceeds room", utf8.RuneCountInString(ctx))
	}
}

func TestBuildDoesNotCutMidWordAfterText(t *testing.T) {
	pages := []string{"Kept.", strings.Repeat("x", 200)}
	question := "Q?"
	fixed := utf8.RuneCountInString(DefaultInstruction + contextHeader + questionHeader + question)

	a := NewAssembler(fixed + 50)
	if ctx := a.Context(pages, question); ctx != "Kept." {
		t.Errorf("context = %q, want only the first page", ctx)
	}
}
