package stortrack

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
)

// AddressQuery is the body of a storesbyaddress lookup.
type AddressQuery struct {
	Country     string `json:"country"`
	State       string `json:"state"`
	City        string `json:"city"`
	Zip         string `json:"zip"`
	StoreName   string `json:"storename"`
	CompanyName string `json:"companyname"`
}

// DefaultCountry is used when an AddressQuery omits the country.
const DefaultCountry = "United States"

// StoreSummary is one store as returned by the lookup endpoints.
type StoreSummary struct {
	StoreID     int      `json:"storeid"`
	MasterID    int      `json:"masterid,omitempty"`
	StoreName   string   `json:"storename"`
	CompanyName string   `json:"companyname,omitempty"`
	Address     string   `json:"address"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Zip         string   `json:"zip"`
	Phone       string   `json:"phone,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Distance    *Number  `json:"distance,omitempty"`
	StoreStatus int      `json:"storestatus,omitempty"`
}

type storesResponse struct {
	Stores []StoreSummary `json:"stores"`
}

type competitorsRequest struct {
	StoreID      []int   `json:"storeid"`
	MasterID     []int   `json:"masterid"`
	CoverageZone float64 `json:"coveragezone"`
}

// competitorItem is one element of the list form of a findcompetitors
// response: either a wrapper with nested competitors or a bare store.
type competitorItem struct {
	StoreSummary
	CompetitorStores []StoreSummary `json:"competitorstores"`
}

// CompetitorResponse is the findcompetitors payload. The service answers
// either with an object carrying competitorstores, or with a list whose
// items carry nested competitorstores or are themselves competitors.
type CompetitorResponse struct {
	Subject          *StoreSummary
	CompetitorStores []StoreSummary
	Items            []competitorItem
}

// UnmarshalJSON accepts both the object and the list form.
func (r *CompetitorResponse) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return eris.New("stortrack: empty competitor response")
	}
	switch data[0] {
	case '{':
		var obj competitorItem
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if obj.StoreID != 0 {
			subject := obj.StoreSummary
			r.Subject = &subject
		}
		r.CompetitorStores = obj.CompetitorStores
		return nil
	case '[':
		return json.Unmarshal(data, &r.Items)
	default:
		return eris.Errorf("stortrack: unexpected competitor response starting with %q", data[0])
	}
}

// Competitors flattens either form. In the list form, bare entries equal to
// the subject are dropped.
func (r *CompetitorResponse) Competitors(subjectID int) []StoreSummary {
	if r.Items == nil {
		return r.CompetitorStores
	}
	var out []StoreSummary
	for _, item := range r.Items {
		if len(item.CompetitorStores) > 0 {
			out = append(out, item.CompetitorStores...)
			continue
		}
		if item.StoreID != 0 && item.StoreID != subjectID {
			out = append(out, item.StoreSummary)
		}
	}
	return out
}

type historicalRequest struct {
	StoreID     int    `json:"storeid"`
	MasterID    int    `json:"masterid"`
	From        string `json:"from"`
	To          string `json:"to"`
	RequestYear int    `json:"requestyear"`
}

// HistoricalStore is one store block of a historicaldata response.
type HistoricalStore struct {
	StoreID   int        `json:"storeID"`
	StoreName string     `json:"storeName"`
	Address   string     `json:"address"`
	City      string     `json:"city"`
	State     string     `json:"state"`
	Zipcode   string     `json:"zipcode"`
	UnitTypes []UnitType `json:"unitType"`
}

// UnitType is one unit offering with its price history.
type UnitType struct {
	Type    string       `json:"type"`
	Size    string       `json:"size"`
	Feature string       `json:"feature"`
	Prices  []PricePoint `json:"price"`
}

// PricePoint is one dated price observation. Either price may be absent.
type PricePoint struct {
	Date    string   `json:"date"`
	Regular *float64 `json:"regular"`
	Online  *float64 `json:"online"`
	Promo   string   `json:"promo"`
}

// decodeHistorical accepts a list of stores or a single store object.
func decodeHistorical(data []byte) ([]HistoricalStore, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var one HistoricalStore
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, err
		}
		return []HistoricalStore{one}, nil
	}
	var many []HistoricalStore
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, err
	}
	return many, nil
}

// Number decodes a JSON number that the service sometimes sends as a string.
type Number float64

// UnmarshalJSON accepts 1.5, "1.5" and "".
func (n *Number) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return eris.Wrapf(err, "stortrack: parse number %q", s)
	}
	*n = Number(v)
	return nil
}

// Float returns the value as *float64, nil when n is nil.
func (n *Number) Float() *float64 {
	if n == nil {
		return nil
	}
	v := float64(*n)
	return &v
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
}
