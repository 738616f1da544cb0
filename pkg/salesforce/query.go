package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Site is a facility record carrying the physical attributes used for
// comparability rankings.
type Site struct {
	ID             string   `json:"Id" salesforce:"Id"`
	Name           string   `json:"Name" salesforce:"Name"`
	YearBuilt      *float64 `json:"Year_Built__c" salesforce:"Year_Built__c"`
	NetRSF         *float64 `json:"Net_RSF__c" salesforce:"Net_RSF__c"`
	ShippingStreet string   `json:"ShippingStreet" salesforce:"ShippingStreet"`
	ShippingCity   string   `json:"ShippingCity" salesforce:"ShippingCity"`
	ShippingState  string   `json:"ShippingState" salesforce:"ShippingState"`
}

// Brand returns the part of Name before " - ", or the whole name.
func (s Site) Brand() string {
	if i := strings.Index(s.Name, " - "); i >= 0 {
		return strings.TrimSpace(s.Name[:i])
	}
	return s.Name
}

// Street returns ShippingStreet, falling back to the part of Name after
// " - " when it looks like an address.
func (s Site) Street() string {
	if s.ShippingStreet != "" {
		return s.ShippingStreet
	}
	if i := strings.Index(s.Name, " - "); i >= 0 {
		rest := strings.TrimSpace(s.Name[i+3:])
		if strings.ContainsAny(rest, "0123456789") {
			return rest
		}
	}
	return ""
}

// siteObject is the SObject holding facility records.
const siteObject = "Account"

// siteFields are the SOQL fields selected for Site queries.
var siteFields = []string{
	"Id", "Name", "Year_Built__c", "Net_RSF__c",
	"ShippingStreet", "ShippingCity", "ShippingState",
}

// FindSitesByName returns up to limit sites whose Name contains term and
// that carry both Year Built and Net RSF.
func FindSitesByName(ctx context.Context, c Client, term string, limit int) ([]Site, error) {
	if limit <= 0 {
		limit = 50
	}
	soql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE Name LIKE '%%%s%%' AND Year_Built__c != null AND Net_RSF__c != null LIMIT %d",
		strings.Join(siteFields, ", "),
		siteObject,
		escapeSoql(term),
		limit,
	)

	var sites []Site
	if err := c.Query(ctx, soql, &sites); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find sites by name %s", term))
	}
	return sites, nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
