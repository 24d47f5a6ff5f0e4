package contact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantEmail   string
		wantPhone   string
		wantAddress string
	}{
		{
			name:      "international phone with spaces",
			text:      "Contacto\nTel: +52 55 1234 5678\n",
			wantPhone: "+525512345678",
		},
		{
			name:      "bare ten digit phone with punctuation",
			text:      "Call (555) 123-4567 today",
			wantPhone: "5551234567",
		},
		{
			name:      "first email wins",
			text:      "write to sales@acme.com or support@acme.com",
			wantEmail: "sales@acme.com",
		},
		{
			name:      "short numbers are not phones",
			text:      "Order 1234-567 shipped in 2024",
			wantPhone: "",
		},
		{
			name:      "too many digits is rejected and next candidate wins",
			text:      "Ref 1234567890123456789\nPhone: 55 1234 5678",
			wantPhone: "5512345678",
		},
		{
			name:        "labelled address line",
			text:        "Dirección: Av. Reforma 222, CDMX\nmore text",
			wantAddress: "Av. Reforma 222, CDMX",
		},
		{
			name:        "all fields",
			text:        "ACME\nAddress: 1 Main St, Springfield\nEmail: hi@acme.io\nTel +1 415 555 0100",
			wantEmail:   "hi@acme.io",
			wantPhone:   "+14155550100",
			wantAddress: "1 Main St, Springfield",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Detect(tt.text)
			assert.Equal(t, tt.wantEmail, deref(info.Email))
			assert.Equal(t, tt.wantPhone, deref(info.Phone))
			assert.Equal(t, tt.wantAddress, deref(info.Address))
		})
	}
}

func TestCleanPhone(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"+52 55 1234 5678", "+525512345678", true},
		{"(555) 123-4567", "5551234567", true},
		{"123-4567", "1234567", false},
		{"+1234567890123456", "+1234567890123456", false},
	}
	for _, tt := range tests {
		got, ok := CleanPhone(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.valid, ok, tt.in)
	}
}

func TestRedactRemovesAllContactPatterns(t *testing.T) {
	text := "Ventas: ventas@acme.mx, soporte@acme.mx\n" +
		"Tel: +52 55 1234 5678 / 55 8765 4321\n" +
		"Otro: (555) 123-4567\n" +
		"Producto premium con garantia."
	// Only the first email and phone are detected, the rest must still go.
	info := Detect(text)

	out := Redact(text, info)

	assert.False(t, ContainsContact(out), "leaked contact data: %q", out)
	assert.NotContains(t, out, "@")
	assert.Contains(t, out, "Producto premium con garantia.")
}

func TestRedactIsIdempotent(t *testing.T) {
	inputs := []string{
		"plain text without contact data",
		"a@b.co    12345 x@y.org 67890\n\n\n\nend",
		"12345 a@b.co 67890",
		"Address: 10 Downing St\nline\n\n\n\nTel: 020 7925 0918 11",
		"   leading spaces   and    runs\n\n\n",
	}
	for _, in := range inputs {
		info := Detect(in)
		once := Redact(in, info)
		twice := Redact(once, info)
		assert.Equal(t, once, twice, "input %q", in)
		assert.False(t, ContainsContact(once), "input %q leaked: %q", in, once)
	}
}

func TestRedactRemovesAddressAndNormalizesWhitespace(t *testing.T) {
	address := "Calle 5 #10, Monterrey"
	info := models.ContactInfo{Address: &address}
	text := "Domicilio: Calle 5 #10, Monterrey\n\n\n\nBody     text"

	out := Redact(text, info)

	assert.NotContains(t, out, address)
	assert.Equal(t, "Domicilio: \n\nBody text", out)
}

func TestParseBlock(t *testing.T) {
	email := "hola@acme.mx"
	phone := "+525512345678"
	block := models.ContactInfo{Email: &email, Phone: &phone}.String()

	gotPhone, gotEmail := ParseBlock(block)
	assert.Equal(t, phone, gotPhone)
	assert.Equal(t, email, gotEmail)

	gotPhone, gotEmail = ParseBlock("Call us at +1 415 555 0100 or write info@x.com")
	assert.Equal(t, "+14155550100", gotPhone)
	assert.Equal(t, "info@x.com", gotEmail)

	gotPhone, gotEmail = ParseBlock("")
	assert.Empty(t, gotPhone)
	assert.Empty(t, gotEmail)
}

func TestMerge(t *testing.T) {
	a, b := "a@x.com", "b@x.com"
	p := "5512345678"
	merged := Merge(models.ContactInfo{Email: &a}, models.ContactInfo{Email: &b, Phone: &p})
	require.NotNil(t, merged.Phone)
	assert.Equal(t, a, *merged.Email)
	assert.Equal(t, p, *merged.Phone)
	assert.Nil(t, merged.Address)
}

func TestContactInfoStringSingleLinePerField(t *testing.T) {
	phone := "+525512345678"
	s := models.ContactInfo{Phone: &phone}.String()
	assert.Equal(t, "Phone: +525512345678", s)
	assert.Equal(t, 1, len(strings.Split(s, "\n")))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestRedactSplitsAdjacentDigitGroups(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		gone     []string
		kept     string
		detected string
	}{
		{
			name:     "two dashed phones separated by a space",
			text:     "Tel: 555-123-4567 555-987-6543",
			gone:     []string{"4567", "6543"},
			kept:     "Tel:",
			detected: "5551234567",
		},
		{
			name:     "order number before a phone",
			text:     "Pedido 123456 5551234567 listo",
			gone:     []string{"5551234567"},
			kept:     "Pedido 123456",
			detected: "5551234567",
		},
		{
			name:     "two spaced phones on one line",
			text:     "Lineas: 55 1234 5678 55 8765 4321",
			gone:     []string{"1234", "5678", "8765", "4321"},
			kept:     "Lineas:",
			detected: "5512345678",
		},
		{
			name:     "international phone followed by a local one",
			text:     "+52 55 1234 5678 55 8765 4321 fin",
			gone:     []string{"1234", "8765"},
			kept:     "fin",
			detected: "+525512345678",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Detect(tt.text)
			require.NotNil(t, info.Phone)
			assert.Equal(t, tt.detected, *info.Phone)

			out := Redact(tt.text, info)
			for _, digits := range tt.gone {
				assert.NotContains(t, out, digits)
			}
			assert.Contains(t, out, tt.kept)
			assert.False(t, ContainsContact(out), "leaked: %q", out)
			assert.Equal(t, out, Redact(out, info))
		})
	}
}

func TestContainsContactFindsPhoneInsideLongRun(t *testing.T) {
	assert.True(t, ContainsContact("Pedido 123456 5551234567"))
	assert.False(t, ContainsContact("Serie 1234567890123456789"))
}
