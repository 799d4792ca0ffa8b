package geoip

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"testing"

	"github.com/oschwald/geoip2-golang"
)

type fakeCityDB struct {
	calls int
	rec   *geoip2.City
	err   error
}

func (f *fakeCityDB) City(net.IP) (*geoip2.City, error) {
	f.calls++
	return f.rec, f.err
}

func (f *fakeCityDB) Close() error { return nil }

type fakeCountryDB struct {
	calls int
	rec   *geoip2.Country
	err   error
}

func (f *fakeCountryDB) Country(net.IP) (*geoip2.Country, error) {
	f.calls++
	return f.rec, f.err
}

func (f *fakeCountryDB) Close() error { return nil }

type fakeASNDB struct {
	calls int
	rec   *geoip2.ASN
	err   error
}

func (f *fakeASNDB) ASN(net.IP) (*geoip2.ASN, error) {
	f.calls++
	return f.rec, f.err
}

func (f *fakeASNDB) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func germanCity() *geoip2.City {
	rec := &geoip2.City{}
	rec.Country.IsoCode = "DE"
	rec.Country.Names = map[string]string{"en": "Germany"}
	rec.City.Names = map[string]string{"en": "Berlin"}
	rec.Location.Latitude = 52.52
	rec.Location.Longitude = 13.40
	rec.Location.TimeZone = "Europe/Berlin"
	rec.Postal.Code = "10115"
	return rec
}

func TestLookupPrivateAddressesShortCircuit(t *testing.T) {
	city := &fakeCityDB{rec: germanCity()}
	country := &fakeCountryDB{}
	asn := &fakeASNDB{}
	m := &MaxMind{city: city, country: country, asn: asn, logger: testLogger()}

	for _, ip := range []string{"10.0.0.5", "192.168.1.20", "127.0.0.1", "::1", "fe80::1", "0.0.0.0", "unknown", ""} {
		loc := m.Lookup(context.Background(), ip)
		if loc.Country != PrivateNetworkCountry || loc.CountryCode != PrivateNetworkCountryCode {
			t.Fatalf("Lookup(%q) = %#v, want private network", ip, loc)
		}
	}
	if city.calls != 0 || country.calls != 0 || asn.calls != 0 {
		t.Fatalf("private lookups must not query databases: city=%d country=%d asn=%d", city.calls, country.calls, asn.calls)
	}
}

func TestLookupCityTierWithASN(t *testing.T) {
	city := &fakeCityDB{rec: germanCity()}
	country := &fakeCountryDB{}
	asn := &fakeASNDB{rec: &geoip2.ASN{AutonomousSystemNumber: 3320, AutonomousSystemOrganization: "Deutsche Telekom AG"}}
	m := &MaxMind{city: city, country: country, asn: asn, logger: testLogger()}

	loc := m.Lookup(context.Background(), "80.130.1.1")
	if loc.Country != "Germany" || loc.CountryCode != "DE" || loc.City != "Berlin" {
		t.Fatalf("unexpected location %#v", loc)
	}
	if loc.Latitude == nil || *loc.Latitude != 52.52 || loc.Timezone != "Europe/Berlin" || loc.PostalCode != "10115" {
		t.Fatalf("unexpected coordinates %#v", loc)
	}
	if loc.ASN != 3320 || loc.ASNOrg != "Deutsche Telekom AG" {
		t.Fatalf("unexpected asn %#v", loc)
	}
	if country.calls != 0 {
		t.Fatalf("country tier must not run after a city hit")
	}
}

func TestLookupFallsBackToCountryTier(t *testing.T) {
	city := &fakeCityDB{err: errors.New("corrupt record")}
	countryRec := &geoip2.Country{}
	countryRec.Country.IsoCode = "FR"
	countryRec.Country.Names = map[string]string{"en": "France"}
	country := &fakeCountryDB{rec: countryRec}
	m := &MaxMind{city: city, country: country, logger: testLogger()}

	loc := m.Lookup(context.Background(), "2.2.2.2")
	if loc.Country != "France" || loc.CountryCode != "FR" || loc.City != "" {
		t.Fatalf("unexpected location %#v", loc)
	}
	if city.calls != 1 || country.calls != 1 {
		t.Fatalf("expected one call per tier, got city=%d country=%d", city.calls, country.calls)
	}
}

func TestLookupFailuresLeaveFieldsEmpty(t *testing.T) {
	m := &MaxMind{
		city:    &fakeCityDB{rec: &geoip2.City{}},
		country: &fakeCountryDB{err: errors.New("boom")},
		asn:     &fakeASNDB{err: errors.New("boom")},
		logger:  testLogger(),
	}
	loc := m.Lookup(context.Background(), "8.8.8.8")
	if loc != (Location{}) {
		t.Fatalf("expected empty location, got %#v", loc)
	}

	var none *MaxMind
	if got := none.Lookup(context.Background(), "8.8.8.8"); got != (Location{}) {
		t.Fatalf("nil resolver must return empty location, got %#v", got)
	}
}

func TestOpenWithoutDatabases(t *testing.T) {
	m, err := Open(Options{}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if m.Enabled() {
		t.Fatalf("expected no databases enabled")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := Open(Options{CityDB: "/nonexistent/GeoLite2-City.mmdb"}, nil); err == nil {
		t.Fatalf("expected error for missing city database")
	}
}

func TestIsPrivate(t *testing.T) {
	cases := map[string]bool{
		"10.1.2.3":        true,
		"172.16.0.1":      true,
		"::ffff:10.0.0.1": true,
		"fd00::1":         true,
		"8.8.8.8":         false,
		"2001:4860::8888": false,
	}
	for raw, want := range cases {
		if got := IsPrivate(netip.MustParseAddr(raw)); got != want {
			t.Fatalf("IsPrivate(%s) = %v, want %v", raw, got, want)
		}
	}
}
