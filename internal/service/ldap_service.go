package service

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sitekeep/adminauth/internal/utils/tlog"

	"github.com/cenkalti/backoff/v5"
	ldapgo "github.com/go-ldap/ldap/v3"
)

var ErrRoleNotFound = errors.New("no directory entry for identity")

type LdapServiceConfig struct {
	Address      string
	BindDN       string
	BindPassword string
	BaseDN       string
	Insecure     bool
	SearchFilter string
	RoleAttr     string
}

// LdapService resolves admin roles from a directory. The connection is kept
// open and checked by a heartbeat.
type LdapService struct {
	config LdapServiceConfig
	conn   *ldapgo.Conn
	mutex  sync.RWMutex
	stop   chan struct{}
}

func NewLdapService(config LdapServiceConfig) *LdapService {
	if config.SearchFilter == "" {
		config.SearchFilter = "(&(objectClass=person)(mail=%s))"
	}
	if config.RoleAttr == "" {
		config.RoleAttr = "role"
	}
	return &LdapService{
		config: config,
		stop:   make(chan struct{}),
	}
}

func (ldap *LdapService) Init() error {
	_, err := ldap.connect()
	if err != nil {
		return fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ldap.stop:
				return
			case <-ticker.C:
				err := ldap.heartbeat()
				if err != nil {
					tlog.App.Error().Err(err).Msg("LDAP connection heartbeat failed")
					if reconnectErr := ldap.reconnect(context.Background()); reconnectErr != nil {
						tlog.App.Error().Err(reconnectErr).Msg("Failed to reconnect to LDAP server")
						continue
					}
					tlog.App.Info().Msg("Successfully reconnected to LDAP server")
				}
			}
		}
	}()

	return nil
}

func (ldap *LdapService) Close() error {
	close(ldap.stop)

	ldap.mutex.Lock()
	defer ldap.mutex.Unlock()

	if ldap.conn != nil {
		return ldap.conn.Close()
	}
	return nil
}

func (ldap *LdapService) connect() (*ldapgo.Conn, error) {
	ldap.mutex.Lock()
	defer ldap.mutex.Unlock()

	conn, err := ldapgo.DialURL(ldap.config.Address, ldapgo.DialWithTLSConfig(&tls.Config{
		InsecureSkipVerify: ldap.config.Insecure,
		MinVersion:         tls.VersionTLS12,
	}))
	if err != nil {
		return nil, err
	}

	if err := conn.Bind(ldap.config.BindDN, ldap.config.BindPassword); err != nil {
		conn.Close()
		return nil, err
	}

	ldap.conn = conn
	return ldap.conn, nil
}

// GetRoles returns the role attribute values of the entry matching email.
// A network failure triggers one reconnect before giving up.
func (ldap *LdapService) GetRoles(ctx context.Context, email string) ([]string, error) {
	roles, err := ldap.searchRoles(email)

	if err != nil && ldapgo.IsErrorWithCode(err, ldapgo.ErrorNetwork) {
		if reconnectErr := ldap.reconnect(ctx); reconnectErr != nil {
			return nil, fmt.Errorf("role lookup failed: %w", errors.Join(err, reconnectErr))
		}
		roles, err = ldap.searchRoles(email)
	}

	return roles, err
}

func (ldap *LdapService) searchRoles(email string) ([]string, error) {
	searchRequest := ldapgo.NewSearchRequest(
		ldap.config.BaseDN,
		ldapgo.ScopeWholeSubtree, ldapgo.NeverDerefAliases, 0, 0, false,
		ldap.searchFilter(email),
		[]string{ldap.config.RoleAttr},
		nil,
	)

	ldap.mutex.Lock()
	defer ldap.mutex.Unlock()

	if ldap.conn == nil {
		return nil, ldapgo.NewError(ldapgo.ErrorNetwork, errors.New("not connected"))
	}

	searchResult, err := ldap.conn.Search(searchRequest)
	if err != nil {
		return nil, err
	}

	return rolesFromEntries(searchResult.Entries, ldap.config.RoleAttr, email)
}

func (ldap *LdapService) searchFilter(email string) string {
	// Escape the email to prevent LDAP injection
	return fmt.Sprintf(ldap.config.SearchFilter, ldapgo.EscapeFilter(email))
}

// rolesFromEntries expects exactly one entry for the identity. Directories
// differ in attribute name case, so the lookup ignores it.
func rolesFromEntries(entries []*ldapgo.Entry, attr string, email string) ([]string, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, email)
	}

	if len(entries) > 1 {
		return nil, fmt.Errorf("multiple entries found for %s", email)
	}

	return entries[0].GetEqualFoldAttributeValues(attr), nil
}

func (ldap *LdapService) heartbeat() error {
	tlog.App.Debug().Msg("Performing LDAP connection heartbeat")

	searchRequest := ldapgo.NewSearchRequest(
		"",
		ldapgo.ScopeBaseObject, ldapgo.NeverDerefAliases, 0, 0, false,
		"(objectClass=*)",
		[]string{},
		nil,
	)

	ldap.mutex.Lock()
	defer ldap.mutex.Unlock()

	if ldap.conn == nil {
		return errors.New("not connected")
	}

	_, err := ldap.conn.Search(searchRequest)
	return err
}

func (ldap *LdapService) reconnect(ctx context.Context) error {
	tlog.App.Info().Msg("Reconnecting to LDAP server")

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 500 * time.Millisecond
	exp.RandomizationFactor = 0.1
	exp.Multiplier = 1.5
	exp.Reset()

	operation := func() (*ldapgo.Conn, error) {
		ldap.mutex.Lock()
		if ldap.conn != nil {
			ldap.conn.Close()
		}
		ldap.mutex.Unlock()
		return ldap.connect()
	}

	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(exp), backoff.WithMaxTries(3))
	return err
}
