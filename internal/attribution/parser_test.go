package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestParse_FullToken(t *testing.T) {
	raw := strPtr("Meta-Ads|00_ADSET_12345678901|CAMPAIGN_NAME_98765432109|Instagram_Stories|CREATIVE_55555555555")
	attr := Parse(raw)

	assert.Equal(t, "Meta-Ads", *attr.Source)
	assert.Equal(t, "00_ADSET_12345678901", *attr.Medium)
	assert.Equal(t, "CAMPAIGN_NAME_98765432109", *attr.Campaign)
	assert.Equal(t, "Instagram_Stories", *attr.Term)
	assert.Equal(t, "CREATIVE_55555555555", *attr.Content)

	assert.Equal(t, "12345678901", *attr.AdsetID)
	assert.Equal(t, "98765432109", *attr.CampaignID)
	assert.Equal(t, "55555555555", *attr.AdID)
	assert.Empty(t, attr.Extras)
}

func TestParse_NilInput(t *testing.T) {
	attr := Parse(nil)

	assert.Nil(t, attr.Raw)
	assert.Nil(t, attr.Source)
	assert.Nil(t, attr.AdsetID)
}

func TestParse_EmptyKeepsRaw(t *testing.T) {
	raw := strPtr("")
	attr := Parse(raw)

	assert.Same(t, raw, attr.Raw)
	assert.Nil(t, attr.Source)
}

func TestParse_PartialToken(t *testing.T) {
	attr := Parse(strPtr("google|cpc"))

	assert.Equal(t, "google", *attr.Source)
	assert.Equal(t, "cpc", *attr.Medium)
	assert.Nil(t, attr.Campaign)
	assert.Nil(t, attr.AdsetID)
}

func TestParse_ExtraSegments(t *testing.T) {
	attr := Parse(strPtr("src|med|camp|term|content|extra1|extra2"))

	assert.Equal(t, []string{"extra1", "extra2"}, attr.Extras)
}

func TestParse_ShortDigitRunIgnored(t *testing.T) {
	// 9 digits is below the platform ID threshold.
	attr := Parse(strPtr("src|adset_123456789"))

	assert.Nil(t, attr.AdsetID)
}

func TestParse_BlankSegmentStaysNil(t *testing.T) {
	attr := Parse(strPtr("src||camp"))

	assert.Equal(t, "src", *attr.Source)
	assert.Nil(t, attr.Medium)
	assert.Equal(t, "camp", *attr.Campaign)
}
