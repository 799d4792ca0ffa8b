package geoip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"github.com/benedict2310/slimlytics/internal/metrics"
)

const (
	PrivateNetworkCountry     = "Private Network"
	PrivateNetworkCountryCode = "XX"
)

// Location is the enrichment attached to an event. Empty strings and nil
// pointers are stored as NULL.
type Location struct {
	Country     string
	CountryCode string
	Region      string
	City        string
	PostalCode  string
	Latitude    *float64
	Longitude   *float64
	Timezone    string
	ASN         uint
	ASNOrg      string
}

// Resolver maps a client IP to a Location. Implementations never fail: any
// lookup problem yields an empty Location.
type Resolver interface {
	Lookup(ctx context.Context, ip string) Location
}

type cityDB interface {
	City(net.IP) (*geoip2.City, error)
	Close() error
}

type countryDB interface {
	Country(net.IP) (*geoip2.Country, error)
	Close() error
}

type asnDB interface {
	ASN(net.IP) (*geoip2.ASN, error)
	Close() error
}

type Options struct {
	CityDB    string
	CountryDB string
	ASNDB     string
}

// MaxMind resolves through up to three mmdb files: city, with country as a
// fallback tier, and ASN independently of both.
type MaxMind struct {
	city    cityDB
	country countryDB
	asn     asnDB
	logger  *slog.Logger
}

// Open opens every configured database. Paths left empty disable that tier;
// a configured path that cannot be opened is an error.
func Open(opts Options, logger *slog.Logger) (*MaxMind, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MaxMind{logger: logger}
	if path := strings.TrimSpace(opts.CityDB); path != "" {
		r, err := geoip2.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open geoip city database %s: %w", path, err)
		}
		m.city = r
	}
	if path := strings.TrimSpace(opts.CountryDB); path != "" {
		r, err := geoip2.Open(path)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("open geoip country database %s: %w", path, err)
		}
		m.country = r
	}
	if path := strings.TrimSpace(opts.ASNDB); path != "" {
		r, err := geoip2.Open(path)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("open geoip asn database %s: %w", path, err)
		}
		m.asn = r
	}
	return m, nil
}

// Enabled reports whether at least one database is loaded.
func (m *MaxMind) Enabled() bool {
	return m != nil && (m.city != nil || m.country != nil || m.asn != nil)
}

func (m *MaxMind) Close() error {
	if m == nil {
		return nil
	}
	var errs []error
	if m.city != nil {
		errs = append(errs, m.city.Close())
	}
	if m.country != nil {
		errs = append(errs, m.country.Close())
	}
	if m.asn != nil {
		errs = append(errs, m.asn.Close())
	}
	return errors.Join(errs...)
}

func (m *MaxMind) Lookup(ctx context.Context, rawIP string) Location {
	addr, ok := parseIP(rawIP)
	if !ok || IsPrivate(addr) {
		metrics.GeoIPLookups.WithLabelValues("private", "hit").Inc()
		return PrivateNetwork()
	}
	if m == nil || ctx.Err() != nil {
		return Location{}
	}
	ip := net.IP(addr.AsSlice())

	var loc Location
	if !m.lookupCity(ip, &loc) {
		m.lookupCountry(ip, &loc)
	}
	m.lookupASN(ip, &loc)
	return loc
}

func (m *MaxMind) lookupCity(ip net.IP, loc *Location) bool {
	if m.city == nil {
		return false
	}
	rec, err := m.city.City(ip)
	if err != nil || rec == nil || rec.Country.IsoCode == "" {
		if err != nil {
			m.logger.Debug("geoip city lookup failed", "error", err)
		}
		metrics.GeoIPLookups.WithLabelValues("city", "miss").Inc()
		return false
	}
	metrics.GeoIPLookups.WithLabelValues("city", "hit").Inc()
	loc.CountryCode = rec.Country.IsoCode
	loc.Country = englishName(rec.Country.Names, rec.Country.IsoCode)
	loc.City = englishName(rec.City.Names, "")
	if len(rec.Subdivisions) > 0 {
		loc.Region = englishName(rec.Subdivisions[0].Names, rec.Subdivisions[0].IsoCode)
	}
	loc.PostalCode = rec.Postal.Code
	loc.Timezone = rec.Location.TimeZone
	if rec.Location.Latitude != 0 || rec.Location.Longitude != 0 {
		lat, lon := rec.Location.Latitude, rec.Location.Longitude
		loc.Latitude = &lat
		loc.Longitude = &lon
	}
	return true
}

func (m *MaxMind) lookupCountry(ip net.IP, loc *Location) {
	if m.country == nil {
		return
	}
	rec, err := m.country.Country(ip)
	if err != nil || rec == nil || rec.Country.IsoCode == "" {
		if err != nil {
			m.logger.Debug("geoip country lookup failed", "error", err)
		}
		metrics.GeoIPLookups.WithLabelValues("country", "miss").Inc()
		return
	}
	metrics.GeoIPLookups.WithLabelValues("country", "hit").Inc()
	loc.CountryCode = rec.Country.IsoCode
	loc.Country = englishName(rec.Country.Names, rec.Country.IsoCode)
}

func (m *MaxMind) lookupASN(ip net.IP, loc *Location) {
	if m.asn == nil {
		return
	}
	rec, err := m.asn.ASN(ip)
	if err != nil || rec == nil || rec.AutonomousSystemNumber == 0 {
		if err != nil {
			m.logger.Debug("geoip asn lookup failed", "error", err)
		}
		metrics.GeoIPLookups.WithLabelValues("asn", "miss").Inc()
		return
	}
	metrics.GeoIPLookups.WithLabelValues("asn", "hit").Inc()
	loc.ASN = rec.AutonomousSystemNumber
	loc.ASNOrg = rec.AutonomousSystemOrganization
}

func PrivateNetwork() Location {
	return Location{Country: PrivateNetworkCountry, CountryCode: PrivateNetworkCountryCode}
}

// IsPrivate reports addresses that can never be geolocated: RFC 1918 and
// unique-local ranges, loopback, link-local and unspecified.
func IsPrivate(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}

func parseIP(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "unknown") {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}

func englishName(names map[string]string, fallback string) string {
	if n := strings.TrimSpace(names["en"]); n != "" {
		return n
	}
	return fallback
}
