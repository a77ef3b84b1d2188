package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/cubattendance/attendance/database"
	"github.com/cubattendance/attendance/model"
)

const namesCacheTTL = 10 * time.Minute

func namesCacheKey(userID int64) string {
	return fmt.Sprintf("names:%d", userID)
}

// RefreshSummary reports one run of the name autocomplete refresh.
type RefreshSummary struct {
	Accounts  int
	Refreshed int
	Skipped   int
	Failed    []int64
}

// RefreshNameAutocomplete rebuilds the cached names of every account with an
// autocomplete sheet. A failing account is logged and skipped.
func (a *Attendance) RefreshNameAutocomplete(ctx context.Context) RefreshSummary {
	ctx, span := tracer.Start(ctx, "RefreshNameAutocomplete")
	defer span.End()

	var summary RefreshSummary
	accounts, err := a.datasource.GetAutocompleteSettings(ctx)
	if err != nil {
		span.RecordError(err)
		logrus.WithError(err).Error("failed to list autocomplete settings")
		return summary
	}

	summary.Accounts = len(accounts)
	for _, s := range accounts {
		replaced, err := a.refreshAccountNames(ctx, s)
		switch {
		case err != nil:
			summary.Failed = append(summary.Failed, s.UserID)
			logrus.WithError(err).WithFields(logrus.Fields{
				"user_id": s.UserID,
				"range":   s.AutocompleteRange(),
			}).Warn("failed to refresh autocomplete names")
		case replaced:
			summary.Refreshed++
		default:
			summary.Skipped++
		}
	}
	return summary
}

// refreshAccountNames replaces the cached names of one account. An empty
// range leaves the cached names untouched and reports false.
func (a *Attendance) refreshAccountNames(ctx context.Context, s model.Settings) (bool, error) {
	rows, outcome, err := a.sheets.Get(ctx, s.SpreadsheetID, s.AutocompleteRange())
	if err != nil {
		return false, err
	}
	if !outcome.OK {
		return false, errors.New(outcome.Message)
	}

	names := firstColumn(rows)
	if len(names) == 0 {
		return false, nil
	}
	if err := a.datasource.ReplaceNames(ctx, s.UserID, names); err != nil {
		return false, err
	}
	a.invalidateNames(ctx, s.UserID)
	return true, nil
}

// firstColumn collects the distinct non-blank values of the first column.
func firstColumn(rows [][]string) []string {
	seen := make(map[string]struct{}, len(rows))
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func (a *Attendance) invalidateNames(ctx context.Context, userID int64) {
	if err := a.cache.Delete(ctx, namesCacheKey(userID)); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("failed to invalidate cached names")
	}
}

// GetNames returns the autocomplete names of an account. With a query the
// names are ordered by closeness to it, names starting with the query first.
func (a *Attendance) GetNames(ctx context.Context, email, query string) ([]string, error) {
	user, err := a.datasource.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, ErrUserNotInvited
	}
	if err != nil {
		return nil, err
	}

	names, err := a.cachedNames(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return names, nil
	}
	return RankNames(names, query), nil
}

func (a *Attendance) cachedNames(ctx context.Context, userID int64) ([]string, error) {
	key := namesCacheKey(userID)
	var names []string
	found, err := a.cache.Get(ctx, key, &names)
	if err != nil {
		logrus.WithError(err).Warn("names cache unavailable")
	}
	if found {
		return names, nil
	}

	names, err = a.datasource.GetNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := a.cache.Set(ctx, key, names, namesCacheTTL); err != nil {
		logrus.WithError(err).Warn("failed to cache names")
	}
	return names, nil
}

// RankNames orders names by case-insensitive edit distance to query. Names
// with query as a prefix come first; ties keep alphabetical order.
func RankNames(names []string, query string) []string {
	q := []rune(strings.ToLower(query))
	type scored struct {
		name     string
		prefix   bool
		distance int
	}

	ranked := make([]scored, len(names))
	for i, name := range names {
		lower := strings.ToLower(name)
		ranked[i] = scored{
			name:     name,
			prefix:   strings.HasPrefix(lower, string(q)),
			distance: levenshtein.DistanceForStrings(q, []rune(lower), levenshtein.DefaultOptions),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].prefix != ranked[j].prefix {
			return ranked[i].prefix
		}
		if ranked[i].distance != ranked[j].distance {
			return ranked[i].distance < ranked[j].distance
		}
		return ranked[i].name < ranked[j].name
	})

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.name
	}
	return out
}
