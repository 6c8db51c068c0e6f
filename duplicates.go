package immotax

import (
	"strings"
)

// DuplicateKeys returns the keys identifying an entity for duplicate detection.
// Two entities of the same kind sharing any key are probable duplicates.
// Kinds without duplicate rules have no keys.
func DuplicateKeys(e Entity) []string {
	norm := func(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }
	amount := func(m Money) string { return m.Plain() + m.Currency() }

	var keys []string
	switch v := e.(type) {
	case *Invoice:
		vendor := norm(v.Vendor)
		if v.Number != "" {
			keys = append(keys, "number|"+vendor+"|"+norm(v.Number))
		}
		keys = append(keys, "amount|"+vendor+"|"+v.Date.String()+"|"+amount(v.Amount))
	case *RentPayment:
		keys = append(keys, v.LeaseID+"|"+v.Date.String()+"|"+amount(v.Amount))
	case *AssetTrade:
		keys = append(keys, strings.Join([]string{
			strings.ToUpper(v.Asset), v.Date.String(), string(v.Side), v.Quantity.String(), amount(v.Amount),
		}, "|"))
	case *Tenant:
		if v.Email != "" {
			keys = append(keys, "email|"+norm(v.Email))
		}
		if !v.BirthDate.IsZero() {
			keys = append(keys, "name|"+norm(v.FullName())+"|"+v.BirthDate.String())
		}
	}
	return keys
}

// HasDuplicateRules tells whether duplicates of a kind can be detected.
func HasDuplicateRules(kind Kind) bool {
	switch kind {
	case KindInvoice, KindRentPayment, KindAssetTrade, KindTenant:
		return true
	}
	return false
}

// FindDuplicates returns the entities of 'existing' that are probable
// duplicates of 'candidate'. An entity is never a duplicate of itself.
func FindDuplicates[E Entity](candidate E, existing []E) []E {
	keys := make(map[string]bool)
	for _, k := range DuplicateKeys(candidate) {
		keys[k] = true
	}
	if len(keys) == 0 {
		return nil
	}
	id := candidate.EntityMeta().ID
	var dups []E
	for _, e := range existing {
		if e.Kind() != candidate.Kind() || (id != "" && e.EntityMeta().ID == id) {
			continue
		}
		for _, k := range DuplicateKeys(e) {
			if keys[k] {
				dups = append(dups, e)
				break
			}
		}
	}
	return dups
}
