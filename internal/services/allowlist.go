package services

import (
	"sort"
	"sync/atomic"

	"github.com/example/storefront/internal/models"
)

// AllowList answers whether an email is granted the admin role.
type AllowList interface {
	Contains(email string) bool
}

// ReloadableAllowList is an AllowList whose contents can be swapped at
// runtime, e.g. on SIGHUP. Reads never block.
type ReloadableAllowList struct {
	emails atomic.Pointer[map[string]struct{}]
}

// NewAllowList builds a list from emails. Entries are case-folded.
func NewAllowList(emails []string) *ReloadableAllowList {
	l := &ReloadableAllowList{}
	l.Replace(emails)
	return l
}

// Contains reports whether email is on the list.
func (l *ReloadableAllowList) Contains(email string) bool {
	set := l.emails.Load()
	if set == nil {
		return false
	}
	_, ok := (*set)[models.NormalizeEmail(email)]
	return ok
}

// Replace atomically swaps the list contents.
func (l *ReloadableAllowList) Replace(emails []string) {
	set := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		if normalized := models.NormalizeEmail(email); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	l.emails.Store(&set)
}

// Emails returns the current entries in sorted order.
func (l *ReloadableAllowList) Emails() []string {
	set := l.emails.Load()
	if set == nil {
		return nil
	}
	out := make([]string, 0, len(*set))
	for email := range *set {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}
