package collector

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/saashunter/hunter/internal/model"
)

func TestNormalize(t *testing.T) {
	at := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

	o := model.Opportunity{Body: strings.Repeat("x", 600)}
	normalize(&o, 500, at)
	assert.Len(t, o.Body, 500)
	assert.Equal(t, "2026-02-14T12:00:00Z", o.CollectedAt)

	// Zero preview length leaves the body alone.
	o = model.Opportunity{Body: "short"}
	normalize(&o, 0, at)
	assert.Equal(t, "short", o.Body)
}

func TestNormalizeMultibyteBody(t *testing.T) {
	at := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

	// Truncation counts characters and never splits a rune.
	o := model.Opportunity{Body: strings.Repeat("é", 600)}
	normalize(&o, 500, at)
	assert.Equal(t, 500, utf8.RuneCountInString(o.Body))
	assert.True(t, utf8.ValidString(o.Body))

	// A multibyte body under the limit is untouched.
	o = model.Opportunity{Body: strings.Repeat("日", 400)}
	normalize(&o, 500, at)
	assert.Equal(t, 400, utf8.RuneCountInString(o.Body))
}

func TestContainsAny(t *testing.T) {
	phrases := []string{"check out my", "i built"}
	assert.True(t, containsAny("please check out my new app", phrases))
	assert.False(t, containsAny("an ordinary complaint", phrases))
	assert.False(t, containsAny("anything", nil))
	assert.False(t, containsAny("anything", []string{""}))
}

func TestMatchKeywords(t *testing.T) {
	keywords := []string{"i hate", "sick of", "wish there was"}
	got := matchKeywords("so sick of this, i hate it", keywords)
	// Configured order, not text order.
	assert.Equal(t, []string{"i hate", "sick of"}, got)
	assert.Nil(t, matchKeywords("all fine here", keywords))
}
