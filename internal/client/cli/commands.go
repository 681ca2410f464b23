package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/dairykeeper/internal/client/cache"
	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
)

var (
	// errNoData is shown when neither the cache nor the server could answer.
	errNoData  = errors.New("no entitlement data available")
	errNoStore = errors.New("no local store configured")
)

const (
	dateLayout  = "2006-01-02"
	stampLayout = "2006-01-02 15:04:05"
)

func (a *App) getStatus() string {
	s := a.cache.Namespace()
	if m := a.Mode(); m != "" {
		s += " " + string(m)
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) Status(ctx context.Context) error {
	st := a.cache.FetchStatus(ctx)
	if st == nil {
		return errNoData
	}

	fmt.Fprintf(a.out, "Active subscriptions: %d\n", st.ActiveCount())
	for _, tab := range entitlements.Tabs() {
		fmt.Fprintf(a.out, "  %-9s %s\n", tab, lockLabel(st.HasTab(tab)))
	}
	subs := st.Subscriptions()
	if len(subs) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GRANT\tOFFER\tTABS\tSTATUS\tENDS")
	for _, g := range subs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.ID, offerLabel(g), joinTabs(g.Tabs), g.Status, formatDate(g.EndDate))
	}
	return w.Flush()
}

func (a *App) Tab(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: tab <purchase|selling|register>")
	}
	tab, err := entitlements.ParseTab(args[0])
	if err != nil {
		return err
	}

	e := a.cache.FetchTabData(ctx, tab)
	if e == nil {
		return errNoData
	}
	if exp, ok := e.ExpiresAt(); ok {
		fmt.Fprintf(a.out, "%s: unlocked until %s (grant %s)\n", tab, formatDate(exp), e.ActiveGrant.ID)
	} else {
		fmt.Fprintf(a.out, "%s: locked\n", tab)
	}
	if len(e.AvailableOffers) > 0 {
		fmt.Fprintln(a.out, "Offers:")
		return a.printOffers(e.AvailableOffers)
	}
	return nil
}

// Access answers from memory only and never calls the server. The flag
// mirrored to the local store for older readers is shown alongside.
func (a *App) Access(ctx context.Context, args []string) error {
	tabs := entitlements.Tabs()
	if len(args) > 0 {
		tab, err := entitlements.ParseTab(args[0])
		if err != nil {
			return err
		}
		tabs = []entitlements.TabID{tab}
	}
	for _, tab := range tabs {
		fmt.Fprintf(a.out, "%-9s %-8s  stored: %s\n", tab, lockLabel(a.cache.HasTabAccess(tab)), lockLabel(a.cache.CompatibilityFlag(ctx, tab)))
	}
	return nil
}

func (a *App) Offers(ctx context.Context, args []string) error {
	var tab entitlements.TabID
	if len(args) > 0 {
		t, err := entitlements.ParseTab(args[0])
		if err != nil {
			return err
		}
		tab = t
	}
	offers, err := a.purchases.Offers(ctx, tab)
	if err != nil {
		return err
	}
	if len(offers) == 0 {
		fmt.Fprintln(a.out, "No offers")
		return nil
	}
	return a.printOffers(offers)
}

func (a *App) printOffers(offers []entitlements.SubscriptionOffer) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OFFER\tNAME\tTABS\tDAYS\tPRICE")
	for _, o := range offers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", o.ID, o.Name, joinTabs(o.Tabs), o.DurationDays, formatPrice(o.Price, o.Currency))
	}
	return w.Flush()
}

func (a *App) Preload(ctx context.Context) error {
	a.cache.PreloadAll(ctx)
	return a.State(ctx)
}

// Buy purchases an offer. Missing arguments default to one period paid in
// cash; the offer id is prompted for when not given.
func (a *App) Buy(ctx context.Context, args []string) error {
	req := entitlements.PurchaseRequest{QuantityMultiplier: 1, PaymentMethod: entitlements.PaymentCash}

	if len(args) > 0 {
		req.OfferID = args[0]
	} else {
		id, err := getSimpleText(a.reader, "Offer id", a.out)
		if err != nil {
			return err
		}
		req.OfferID = id
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		req.QuantityMultiplier = n
	}
	if len(args) > 2 {
		req.PaymentMethod = entitlements.PaymentMethod(strings.ToLower(args[2]))
	}
	if len(args) > 3 {
		req.TransactionRef = args[3]
	}

	g, err := a.purchases.Purchase(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Purchased %s: grant %s, %s to %s, paid %s\n",
		req.OfferID, g.ID, formatDate(g.StartDate), formatDate(g.EndDate), formatPrice(g.AmountPaid, g.Currency))
	return nil
}

func (a *App) Clear(ctx context.Context) error {
	a.cache.Clear(ctx)
	fmt.Fprintln(a.out, "Entitlement cache cleared")
	return nil
}

// State prints each key's refresh state and when it was last fetched.
func (a *App) State(_ context.Context) error {
	snap := a.cache.Snapshot()
	for _, k := range cache.Keys() {
		fmt.Fprintf(a.out, "%-13s %-8s  %s\n", k, a.cache.State(k), formatStamp(fetchedAt(snap, k)))
	}
	return nil
}

// Stored lists every key in the local store, other users' included.
func (a *App) Stored(ctx context.Context) error {
	if a.store == nil {
		return errNoStore
	}
	entries, err := a.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list local store: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "Local store is empty")
		return nil
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tBYTES")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\n", k, len(entries[k]))
	}
	return w.Flush()
}

// Reset clears the cache and then wipes the whole local store.
func (a *App) Reset(ctx context.Context) error {
	if a.store == nil {
		return errNoStore
	}
	a.cache.Clear(ctx)
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("wipe local store: %w", err)
	}
	a.logger.Info(ctx, "local store wiped")
	fmt.Fprintln(a.out, "Local store wiped")
	return nil
}

// Stats prints every gathered counter and gauge, one line per label set.
func (a *App) Stats(_ context.Context) error {
	if a.gatherer == nil {
		fmt.Fprintln(a.out, "Metrics are disabled")
		return nil
	}
	families, err := a.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case m.GetGauge() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetGauge().GetValue()))
			case m.GetHistogram() != nil:
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%gs", name, m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(a.out, l)
	}
	return nil
}

func lockLabel(unlocked bool) string {
	if unlocked {
		return "unlocked"
	}
	return "locked"
}

func offerLabel(g entitlements.SubscriptionGrant) string {
	if g.OfferName != "" {
		return g.OfferName
	}
	return g.OfferID
}

func joinTabs(tabs []entitlements.TabID) string {
	s := make([]string, len(tabs))
	for i, t := range tabs {
		s[i] = t.String()
	}
	return strings.Join(s, ",")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}

func fetchedAt(snap entitlements.Snapshot, k cache.Key) time.Time {
	if k == cache.KeyStatus {
		if snap.Status == nil {
			return time.Time{}
		}
		return snap.StatusFetchedAt
	}
	tab, ok := k.Tab()
	if !ok {
		return time.Time{}
	}
	if e := snap.PerTab[tab]; e != nil {
		return e.LastFetched
	}
	return time.Time{}
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(stampLayout)
}

// formatPrice renders minor units, e.g. 19900 INR as "199.00 INR".
func formatPrice(minor int64, currency string) string {
	if currency == "" {
		currency = "INR"
	}
	return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, currency)
}
