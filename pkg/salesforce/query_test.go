package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSitesByName(t *testing.T) {
	t.Run("returns matching sites", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, soql string, out any) error {
				assert.Contains(t, soql, "Name LIKE '%StorQuest%'")
				assert.Contains(t, soql, "Year_Built__c != null")
				assert.Contains(t, soql, "LIMIT 25")

				sites := out.(*[]Site)
				*sites = []Site{{ID: "001a", Name: "StorQuest - 2227 San Pablo Ave"}}
				return nil
			},
		}

		sites, err := FindSitesByName(context.Background(), mock, "StorQuest", 25)
		require.NoError(t, err)
		require.Len(t, sites, 1)
		assert.Equal(t, "001a", sites[0].ID)
	})

	t.Run("default limit", func(t *testing.T) {
		mock := &mockClient{}
		_, err := FindSitesByName(context.Background(), mock, "x", 0)
		require.NoError(t, err)
		require.Len(t, mock.soql, 1)
		assert.Contains(t, mock.soql[0], "LIMIT 50")
	})

	t.Run("escapes quotes", func(t *testing.T) {
		mock := &mockClient{}
		_, err := FindSitesByName(context.Background(), mock, "Bob's Storage", 1)
		require.NoError(t, err)
		assert.Contains(t, mock.soql[0], `Bob\'s Storage`)
	})

	t.Run("wraps query failure", func(t *testing.T) {
		mock := &mockClient{
			queryFn: func(_ context.Context, _ string, _ any) error {
				return errors.New("connection refused")
			},
		}
		sites, err := FindSitesByName(context.Background(), mock, "x", 1)
		assert.Error(t, err)
		assert.Nil(t, sites)
		assert.Contains(t, err.Error(), "find sites by name")
	})
}

func TestSite_BrandAndStreet(t *testing.T) {
	s := Site{Name: "StorQuest - 2227 San Pablo Ave"}
	assert.Equal(t, "StorQuest", s.Brand())
	assert.Equal(t, "2227 San Pablo Ave", s.Street())

	s = Site{Name: "StorQuest - Oakland"}
	assert.Equal(t, "", s.Street())

	s = Site{Name: "Plain", ShippingStreet: "1 Main St"}
	assert.Equal(t, "Plain", s.Brand())
	assert.Equal(t, "1 Main St", s.Street())
}
