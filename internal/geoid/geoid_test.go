package geoid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "dataset prefix", raw: "us-va-005", want: "51005"},
		{name: "dataset prefix upper case", raw: "US-VA-005", want: "51005"},
		{name: "county only", raw: "005", want: "51005"},
		{name: "county unpadded", raw: "5", want: "51005"},
		{name: "county two digits", raw: "59", want: "51059"},
		{name: "full geoid", raw: "51005", want: "51005"},
		{name: "census geo_id", raw: "0500000US51760", want: "51760"},
		{name: "separators", raw: "51-005", want: "51005"},
		{name: "whitespace", raw: "  760 ", want: "51760"},
		{name: "variable width", raw: "0005", want: "51005"},
		{name: "us prefix only", raw: "us-51-005", want: "51005"},
		{name: "va prefix", raw: "va-013", want: "51013"},
		{name: "empty", raw: "", want: ""},
		{name: "no digits", raw: "n/a", want: ""},
		{name: "other state", raw: "24005", want: ""},
		{name: "too long", raw: "5100512", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"us-va-005", "005", "5", "51005", "0500000US51760", "0005",
		"", "garbage", "24005", "51-510", "us-va-subdivision", "99999999",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_DatasetAndFeatureAgree(t *testing.T) {
	assert.Equal(t, Normalize("us-va-005"), Normalize("005"))
	assert.NotEmpty(t, Normalize("005"))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("51005"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("5100"))
	assert.False(t, Valid("24005"))
	assert.False(t, Valid("51a05"))
}

func TestCounty(t *testing.T) {
	assert.Equal(t, "005", County("51005"))
	assert.Equal(t, "", County("bogus"))
}
