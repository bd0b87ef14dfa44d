package updater

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist/parsers"
)

func TestAddCustomRule(t *testing.T) {
	f := newFixture(t)
	f.files.files["custom_rules.txt"] = "! my rules\n||one.example.com^\n"
	f.u.Load()
	before := f.pub.count()

	stats, err := f.u.AddCustomRule("  ||two.example.com^ ")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.BlockRules)
	assert.Equal(t, before+1, f.pub.count(), "a new set is published")
	assert.Equal(t, "! my rules\n||one.example.com^\n||two.example.com^\n", f.files.files["custom_rules.txt"])

	set := f.pub.last()
	assert.True(t, blocks(t, set, "https://one.example.com/"))
	assert.True(t, blocks(t, set, "https://two.example.com/"))
	assert.Equal(t, []string{"||one.example.com^", "||two.example.com^"}, f.u.CustomRules())
}

func TestAddCustomRule_Rejects(t *testing.T) {
	f := newFixture(t)
	f.files.files["custom_rules.txt"] = "||one.example.com^\n"
	f.u.Load()
	writes, published := f.files.writes, f.pub.count()

	tests := []struct {
		name   string
		rule   string
		target error
	}{
		{"duplicate", "||one.example.com^", ErrRuleExists},
		{"comment", "! note", ErrInvalidRule},
		{"cosmetic", "example.com##.ad", ErrInvalidRule},
		{"unsupported option", "||two.example.com^$popup", ErrInvalidRule},
		{"empty", "   ", ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.u.AddCustomRule(tt.rule)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	_, err := f.u.AddCustomRule("||two.example.com^$popup")
	assert.ErrorIs(t, err, parsers.ErrUnsupported, "parser reason is kept")
	assert.Equal(t, writes, f.files.writes, "rejected rules never touch the file")
	assert.Equal(t, published, f.pub.count())
}

func TestRemoveCustomRule(t *testing.T) {
	f := newFixture(t)
	f.files.files["custom_rules.txt"] = "||one.example.com^\n||two.example.com^\n||one.example.com^\n"
	f.u.Load()

	stats, err := f.u.RemoveCustomRule("||one.example.com^")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BlockRules)
	assert.Equal(t, "||two.example.com^\n", f.files.files["custom_rules.txt"])
	assert.False(t, blocks(t, f.pub.last(), "https://one.example.com/"))

	_, err = f.u.RemoveCustomRule("||one.example.com^")
	assert.ErrorIs(t, err, ErrRuleNotFound)

	_, err = f.u.RemoveCustomRule("||two.example.com^")
	require.NoError(t, err)
	assert.Empty(t, f.files.files["custom_rules.txt"])
	assert.Empty(t, f.u.CustomRules())
}

func TestCustomRules_EditsSeeExternalChanges(t *testing.T) {
	f := newFixture(t)
	f.files.files["custom_rules.txt"] = "||one.example.com^\n"
	f.u.Load()

	f.files.files["custom_rules.txt"] = "||edited.example.com^\n"
	_, err := f.u.AddCustomRule("||two.example.com^")
	require.NoError(t, err)
	assert.Equal(t, "||edited.example.com^\n||two.example.com^\n", f.files.files["custom_rules.txt"])
}

func TestCustomRules_WriteFailureKeepsRules(t *testing.T) {
	f := newFixture(t)
	f.files.files["custom_rules.txt"] = "||one.example.com^\n"
	f.u.Load()
	published := f.pub.count()
	f.files.writeErr = errors.New("read-only file system")

	_, err := f.u.AddCustomRule("||two.example.com^")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only file system")
	assert.Equal(t, published, f.pub.count(), "nothing is published")
	assert.Equal(t, []string{"||one.example.com^"}, f.u.CustomRules())
}

func TestCustomRules_NoCustomSource(t *testing.T) {
	u, err := New(Options{
		Sources:   []domain.Source{{ID: domain.SourceGeneral, File: "easylist.txt"}},
		Files:     newMemFiles(),
		Compiler:  filterlist.NewCompiler(filterlist.CompilerOptions{}),
		Publisher: &capturePublisher{},
	})
	require.NoError(t, err)

	_, err = u.AddCustomRule("||one.example.com^")
	assert.ErrorIs(t, err, ErrNoCustomSource)
	_, err = u.RemoveCustomRule("||one.example.com^")
	assert.ErrorIs(t, err, ErrNoCustomSource)
}
