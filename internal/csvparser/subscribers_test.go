package csvparser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubscriberEmails(t *testing.T) {
	input := strings.Join([]string{
		"Name,Email,Plan",
		"Jane,jane@example.com,pro",
		"Bob,BOB@Example.com,free",
		"Dup,jane@example.com,pro",
		",,free",
		"Short",
		"Ana,ana@example.com,free",
	}, "\n")

	emails, err := ParseSubscriberEmails(strings.NewReader(input), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"jane@example.com", "bob@example.com", "ana@example.com"}, emails)
}

func TestParseSubscriberEmailsHeaderCaseInsensitive(t *testing.T) {
	input := "EMAIL\nuser@example.com\n"

	emails, err := ParseSubscriberEmails(strings.NewReader(input), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"user@example.com"}, emails)
}

func TestParseSubscriberEmailsMissingColumn(t *testing.T) {
	input := "Name,Address\nJane,somewhere\n"

	_, err := ParseSubscriberEmails(strings.NewReader(input), 0)
	assert.EqualError(t, err, "csv must contain an Email column")
}

func TestParseSubscriberEmailsNoDataRows(t *testing.T) {
	_, err := ParseSubscriberEmails(strings.NewReader("Email\n"), 0)
	assert.EqualError(t, err, "csv must contain at least one data row")
}

func TestParseSubscriberEmailsRowLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Email\n")
	sb.WriteString("a@example.com\n")
	sb.WriteString("b@example.com\n")
	sb.WriteString("c@example.com\n")

	emails, err := ParseSubscriberEmails(strings.NewReader(sb.String()), 2)
	require.NoError(t, err)
	assert.Len(t, emails, 2)
}
