package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "PI102206", "PI102206"},
		{"quote", `GDPR "saglasnost"`, `GDPR \"saglasnost\"`},
		{"backslash", `a\b`, `a\\b`},
		{"wildcards", "a*b?c", `a\*b\?c`},
		{"grouping", "(a|b)&[c]{d}", `\(a\|b\)\&\[c\]\{d\}`},
		{"misc", "x^y~z!w:+v-", `x\^y\~z\!w\:\+v\-`},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Escape(tc.input))
		})
	}
}

func TestQueryBuilder(t *testing.T) {
	t.Parallel()

	q := NewQuery().
		Type("cm:content").
		Ancestor("root-node").
		FieldAny("ecm:docType", []string{"00834", "00835"}).
		CreatedBetween("2020-01-01", "2023-12-31").
		String()

	assert.Equal(t,
		`TYPE:"cm:content" AND ANCESTOR:"workspace://SpacesStore/root-node" AND `+
			`(=ecm:docType:"00834" OR =ecm:docType:"00835") AND `+
			`cm:created:["2020\-01\-01" TO "2023\-12\-31"]`,
		q)
}

func TestQueryFieldAnySingleValue(t *testing.T) {
	t.Parallel()

	q := NewQuery().FieldAny("ecm:docType", []string{"00834"}).String()
	assert.Equal(t, `=ecm:docType:"00834"`, q)
}

func TestQueryNameContainsKeepsWildcards(t *testing.T) {
	t.Parallel()

	q := NewQuery().IsFolder().NameContains("dosije-PI").String()
	assert.Equal(t, `TYPE:"cm:folder" AND cm:name:"*dosije\-PI*"`, q)
}

func TestQueryCreatedBetweenOpenBounds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `cm:created:[MIN TO "2023\-12\-31"]`,
		NewQuery().CreatedBetween("", "2023-12-31").String())
	assert.Equal(t, `cm:created:["2020\-01\-01" TO MAX]`,
		NewQuery().CreatedBetween("2020-01-01", "").String())
	assert.Equal(t, "", NewQuery().CreatedBetween("", "").String())
}
