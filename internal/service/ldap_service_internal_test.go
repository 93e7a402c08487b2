package service

import (
	"errors"
	"testing"

	ldapgo "github.com/go-ldap/ldap/v3"
	"gotest.tools/v3/assert"
)

func TestLdapSearchFilter(t *testing.T) {
	ldap := NewLdapService(LdapServiceConfig{})

	// Default filter
	assert.Equal(t, "(&(objectClass=person)(mail=jane@example.com))", ldap.searchFilter("jane@example.com"))

	// Filter metacharacters are escaped
	assert.Equal(t, `(&(objectClass=person)(mail=\2a\29\28uid=\2a))`, ldap.searchFilter("*)(uid=*"))

	custom := NewLdapService(LdapServiceConfig{SearchFilter: "(uid=%s)"})
	assert.Equal(t, "(uid=jane)", custom.searchFilter("jane"))
}

func TestRolesFromEntries(t *testing.T) {
	jane := ldapgo.NewEntry("uid=jane,ou=people,dc=example,dc=com", map[string][]string{
		"mail": {"jane@example.com"},
		"role": {"admin", "editor"},
	})
	bob := ldapgo.NewEntry("uid=bob,ou=people,dc=example,dc=com", map[string][]string{
		"mail": {"bob@example.com"},
	})

	roles, err := rolesFromEntries([]*ldapgo.Entry{jane}, "role", "jane@example.com")
	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"admin", "editor"}, roles)

	// Attribute lookup ignores case
	roles, err = rolesFromEntries([]*ldapgo.Entry{jane}, "Role", "jane@example.com")
	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"admin", "editor"}, roles)

	// No role attribute
	roles, err = rolesFromEntries([]*ldapgo.Entry{bob}, "role", "bob@example.com")
	assert.NilError(t, err)
	assert.Equal(t, 0, len(roles))

	// No entry
	_, err = rolesFromEntries(nil, "role", "ghost@example.com")
	assert.Assert(t, errors.Is(err, ErrRoleNotFound))

	// Ambiguous
	_, err = rolesFromEntries([]*ldapgo.Entry{jane, bob}, "role", "jane@example.com")
	assert.ErrorContains(t, err, "multiple entries")
}

func TestHasAdminRoleFromDirectory(t *testing.T) {
	entry := ldapgo.NewEntry("uid=jane,dc=example,dc=com", map[string][]string{
		"role": {"Editor", " Admin "},
	})

	roles, err := rolesFromEntries([]*ldapgo.Entry{entry}, "role", "jane@example.com")
	assert.NilError(t, err)
	assert.Assert(t, HasAdminRole(roles, []string{"admin"}))
	assert.Assert(t, !HasAdminRole(roles, []string{"owner"}))
}
