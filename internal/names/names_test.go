package names

import (
	"reflect"
	"testing"
)

func TestKey(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"Email", "email"},
		{"Date-of_Birth", "dateofbirth"},
		{" phone number ", "phonenumber"},
		{"Příjmení", "prijmeni"},
		{"user.e-mail", "useremail"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Key(tt.in); got != tt.want {
			t.Fatalf("Key(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"Customer Orders", "customer_orders"},
		{"  --a//b--  ", "a_b"},
		{"Číslo protokolu", "cislo_protokolu"},
		{"x(1)", "x1"},
	}
	for _, tt := range tests {
		if got := Identifier(tt.in); got != tt.want {
			t.Fatalf("Identifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"customerEmail2", []string{"customer", "email", "2"}},
		{"URLPath", []string{"url", "path"}},
		{"date_of-birth", []string{"date", "of", "birth"}},
		{"DOB", []string{"dob"}},
		{"Tel. číslo", []string{"tel", "cislo"}},
		{"ipv4", []string{"ipv", "4"}},
		{" -- ", nil},
	}
	for _, tt := range tests {
		if got := Tokens(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("Tokens(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSegmentTokens(t *testing.T) {
	t.Parallel()

	got := SegmentTokens("Customer.Home-Address..Zip")
	want := [][]string{{"customer"}, {"home", "address"}, {"zip"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SegmentTokens = %v, want %v", got, want)
	}
}

func TestHasFragment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		frag string
		want bool
	}{
		{"unit_fee", "fee", true},
		{"coffee", "fee", false},
		{"mailing_list", "mail", false},
		{"E-Mail", "email", true},
		{"adobe_id", "dob", false},
		{"validated", "date", false},
		{"created_date", "date", true},
		{"date_of_birth", "dateofbirth", true},
		{"createdAt", "createdat", true},
		{"emailaddress", "email", true},
		{"ip_address", "ipaddr", false},
		{"ipv4", "ipv4", true},
		{"", "email", false},
	}
	for _, tt := range tests {
		if got := HasFragment(Tokens(tt.name), tt.frag); got != tt.want {
			t.Fatalf("HasFragment(%q, %q) = %v, want %v", tt.name, tt.frag, got, tt.want)
		}
	}
}
