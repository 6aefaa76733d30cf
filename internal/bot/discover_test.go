// internal/bot/discover_test.go
package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// discoveryPage builds a send money page whose agency list follows the selected state
// and whose result table lists matches[agency] rows for "Smith" plus one unrelated row.
func discoveryPage(p *fakePage, states []string, agencies func(state string) []string, matches map[string]int) {
	stateSel := &fakeElement{tag: "select", options: append([]string{"Select State"}, states...)}
	agencySel := &fakeElement{tag: "select"}
	stateSel.onSelect = func(state string) {
		agencySel.options = append([]string{"Select Agency"}, agencies(state)...)
		agencySel.selected = ""
	}
	p.add(cssQ("select"), stateSel, agencySel)

	input := &fakeElement{}
	p.add(cssQ("input[placeholder*='Enter ID or Name']"), input)

	p.html = func() string {
		var b strings.Builder
		b.WriteString("<html><body>")
		for _, sel := range []*fakeElement{stateSel, agencySel} {
			b.WriteString("<select>")
			for _, o := range sel.options {
				fmt.Fprintf(&b, "<option>%s</option>", o)
			}
			b.WriteString("</select>")
		}
		b.WriteString(`<input placeholder="Enter ID or Name">`)
		if input.value != "" && agencySel.selected != "" {
			b.WriteString("<table><tbody>")
			b.WriteString("<tr><td>DOE, JANE</td><td>ID 99999</td></tr>")
			for i := 1; i <= matches[agencySel.selected]; i++ {
				fmt.Fprintf(&b, "<tr><td>SMITH, JOHN %d</td><td>ID %d</td></tr>", i, 10000+i)
			}
			b.WriteString("</tbody></table>")
		}
		b.WriteString("</body></html>")
		return b.String()
	}
}

func twoUnits(state string) []string { return []string{state + " North", state + " South"} }

func TestFindByNameStopsAtCap(t *testing.T) {
	p := newFakePage()
	discoveryPage(p, []string{"Texas", "Oklahoma"}, twoUnits, map[string]int{
		"Texas North": 5, "Texas South": 5, "Oklahoma North": 5, "Oklahoma South": 5,
	})
	b, logs := newTestBot(t, p)

	got, err := b.FindByName(context.Background(), "Smith", 3)
	require.NoError(t, err)

	want := []SearchResult{
		{State: "Texas", Agency: "Texas North", InmateName: "SMITH, JOHN 1", InmateID: "10001"},
		{State: "Texas", Agency: "Texas North", InmateName: "SMITH, JOHN 2", InmateID: "10002"},
		{State: "Texas", Agency: "Texas North", InmateName: "SMITH, JOHN 3", InmateID: "10003"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindByName() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "navigate https://site.test/send-money", p.actions[0])
	assert.False(t, p.did("select css=select=Oklahoma"), "second state must never be evaluated")
	assert.False(t, p.did("select css=select#1=Texas South"), "second unit must never be evaluated")
	assert.Equal(t, 1, logs.FilterMessage("Result cap reached.").Len())
}

func TestFindByNameSweepsEveryCombination(t *testing.T) {
	p := newFakePage()
	discoveryPage(p, []string{"Texas", "Oklahoma"}, twoUnits, map[string]int{
		"Texas North": 1, "Oklahoma South": 2,
	})
	b, _ := newTestBot(t, p)

	got, err := b.FindByName(context.Background(), "smith", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Texas North", got[0].Agency)
	assert.Equal(t, "Oklahoma South", got[1].Agency)
	assert.Equal(t, "Oklahoma", got[2].State)

	var selected []string
	for _, a := range p.actions {
		if strings.HasPrefix(a, "select ") {
			selected = append(selected, a)
		}
	}
	assert.Equal(t, []string{
		"select css=select=Texas",
		"select css=select#1=Texas North",
		"select css=select#1=Texas South",
		"select css=select=Oklahoma",
		"select css=select#1=Oklahoma North",
		"select css=select#1=Oklahoma South",
	}, selected, "placeholder options are skipped")
}

func TestFindByNameDefaultCap(t *testing.T) {
	p := newFakePage()
	discoveryPage(p, []string{"Texas"}, twoUnits, map[string]int{"Texas North": 15, "Texas South": 15})
	b, _ := newTestBot(t, p)

	got, err := b.FindByName(context.Background(), "Smith", 0)
	require.NoError(t, err)
	assert.Len(t, got, b.cfg.Search.MaxResults)
}

func TestFindByNameStateWithoutUnits(t *testing.T) {
	p := newFakePage()
	discoveryPage(p, []string{"Texas"}, func(string) []string { return nil }, nil)
	b, _ := newTestBot(t, p)

	got, err := b.FindByName(context.Background(), "Smith", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindByNameWithoutSelectors(t *testing.T) {
	p := newFakePage()
	p.setHTML(`<html><body><input placeholder="Enter ID or Name"></body></html>`)
	b, logs := newTestBot(t, p)

	got, err := b.FindByName(context.Background(), "Smith", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, logs.FilterMessage("No state selector on the page, nothing to iterate.").Len())
}

func TestFindByNameRejectsEmptyName(t *testing.T) {
	p := newFakePage()
	b, _ := newTestBot(t, p)

	_, err := b.FindByName(context.Background(), "  ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Empty(t, p.actions)
}

func TestFindByNameReturnsPartialResultsOnFatalError(t *testing.T) {
	p := newFakePage()
	discoveryPage(p, []string{"Texas", "Oklahoma"}, twoUnits, map[string]int{"Texas North": 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Cancel the run once the second unit is chosen.
	p.elements[cssQ("select").String()][1].onSelect = func(label string) {
		if label == "Texas South" {
			cancel()
		}
	}
	b, _ := newTestBot(t, p)

	got, err := b.FindByName(ctx, "Smith", 10)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Len(t, got, 1)
}
