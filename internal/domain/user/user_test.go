package user

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func TestValidateUsername(t *testing.T) {
	for _, v := range []string{"alice1", "alice_01", "a1234", "john-doe", "alice.dev"} {
		assert.NoError(t, ValidateUsername(v), v)
	}
	for _, v := range []string{"", "1alice", "a", "ab", "a_", "a..", "a*", "Alice1", "toolongusername_over_32_chars_abc"} {
		assert.ErrorIs(t, ValidateUsername(v), ErrInvalid, v)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("checker2024pass", "alice"))

	cases := map[string]string{
		"short":            "short1",
		"no digit":         "onlyletterspass",
		"no letter":        "1234567890123",
		"contains account": "ALICE12345678",
	}
	for name, pw := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidatePassword(pw, "alice")
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "password", fe.Field)
		})
	}
}

func TestNew(t *testing.T) {
	u, err := New("  Alice1 ", " Alice A. ", "checker2024pass", RoleMember, now)
	require.NoError(t, err)
	assert.Equal(t, "alice1", u.Username)
	assert.Equal(t, "Alice A.", u.DisplayName)
	assert.Equal(t, StatusActive, u.Status)
	assert.Equal(t, now, u.CreatedAt)
	assert.True(t, u.CheckPassword("checker2024pass"))
	assert.False(t, u.CheckPassword("wrong-pass-123"))

	_, err = New("alice1", "", "checker2024pass", Role("ROOT"), now)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = New("alice1", strings.Repeat("x", MaxDisplayNameSize+1), "checker2024pass", RoleMember, now)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUser_SetPassword(t *testing.T) {
	u, err := New("alice1", "", "checker2024pass", RoleMember, now)
	require.NoError(t, err)
	old := u.PasswordHash

	later := now.Add(time.Hour)
	assert.ErrorIs(t, u.SetPassword("alice1-rotated-9", later), ErrInvalid)
	assert.Equal(t, old, u.PasswordHash)

	require.NoError(t, u.SetPassword("rotated-pass-77", later))
	assert.Equal(t, later, u.UpdatedAt)
	assert.True(t, u.CheckPassword("rotated-pass-77"))
}

func TestUser_NameAndMatches(t *testing.T) {
	u := &User{Username: "alice"}
	assert.Equal(t, "alice", u.Name())
	assert.True(t, u.Matches(""))
	assert.True(t, u.Matches("LIC"))

	u.DisplayName = "Checker Queen"
	assert.Equal(t, "Checker Queen", u.Name())
	assert.True(t, u.Matches("queen"))
	assert.False(t, u.Matches("bob"))
}

func TestParseRoleAndStatus(t *testing.T) {
	r, err := ParseRole(" admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
	_, err = ParseRole("owner")
	assert.ErrorIs(t, err, ErrInvalid)

	st, err := ParseStatus("disabled")
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, st)
	_, err = ParseStatus("banned")
	assert.ErrorIs(t, err, ErrInvalid)
}
