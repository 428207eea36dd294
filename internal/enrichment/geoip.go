package enrichment

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pterm/pterm"
)

// GeoInfo is the location data resolved for a source address
type GeoInfo struct {
	Country string
	City    string
	ASN     uint
	ASNOrg  string
}

// String renders the location compactly, e.g. "DE, Berlin, AS3320 Deutsche Telekom AG"
func (g *GeoInfo) String() string {
	if g == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if g.Country != "" {
		parts = append(parts, g.Country)
	}
	if g.City != "" {
		parts = append(parts, g.City)
	}
	if g.ASN != 0 {
		parts = append(parts, strings.TrimSpace(fmt.Sprintf("AS%d %s", g.ASN, g.ASNOrg)))
	}
	return strings.Join(parts, ", ")
}

// GeoIPEnricher resolves source addresses against MaxMind databases.
// Either database may be missing; the enricher is disabled when both are.
type GeoIPEnricher struct {
	cityDB *geoip2.Reader
	asnDB  *geoip2.Reader
	logger *pterm.Logger

	mu        sync.RWMutex
	cache     map[string]*GeoInfo
	cacheSize int
}

// NewGeoIPEnricher opens the configured databases
func NewGeoIPEnricher(cityDBPath, asnDBPath string, cacheSize int, logger *pterm.Logger) (*GeoIPEnricher, error) {
	g := &GeoIPEnricher{
		logger:    logger,
		cache:     make(map[string]*GeoInfo),
		cacheSize: cacheSize,
	}

	var err error
	if g.cityDB, err = openDB(cityDBPath, logger); err != nil {
		return nil, fmt.Errorf("failed to open city database: %w", err)
	}
	if g.asnDB, err = openDB(asnDBPath, logger); err != nil {
		g.Close()
		return nil, fmt.Errorf("failed to open ASN database: %w", err)
	}

	logger.Debug("GeoIP enricher initialized",
		logger.Args("city_db", g.cityDB != nil, "asn_db", g.asnDB != nil, "cache_size", cacheSize))
	return g, nil
}

// openDB returns nil without error when the database file does not exist
func openDB(path string, logger *pterm.Logger) (*geoip2.Reader, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warn("GeoIP database not found, skipping", logger.Args("path", path))
		return nil, nil
	}
	return geoip2.Open(path)
}

// IsEnabled reports whether at least one database is loaded
func (g *GeoIPEnricher) IsEnabled() bool {
	return g != nil && (g.cityDB != nil || g.asnDB != nil)
}

// Lookup resolves an address. Private, loopback and unparseable addresses yield nil.
func (g *GeoIPEnricher) Lookup(address string) *GeoInfo {
	if !g.IsEnabled() {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return nil
	}

	g.mu.RLock()
	cached, ok := g.cache[address]
	g.mu.RUnlock()
	if ok {
		return cached
	}

	info := &GeoInfo{}
	if g.cityDB != nil {
		if city, err := g.cityDB.City(ip); err == nil {
			info.Country = city.Country.IsoCode
			info.City = city.City.Names["en"]
		} else {
			g.logger.Trace("GeoIP city lookup failed", g.logger.Args("ip", address, "error", err))
		}
	}
	if g.asnDB != nil {
		if asn, err := g.asnDB.ASN(ip); err == nil {
			info.ASN = asn.AutonomousSystemNumber
			info.ASNOrg = asn.AutonomousSystemOrganization
		} else {
			g.logger.Trace("GeoIP ASN lookup failed", g.logger.Args("ip", address, "error", err))
		}
	}

	g.mu.Lock()
	if g.cacheSize > 0 && len(g.cache) >= g.cacheSize {
		// reset when full
		g.cache = make(map[string]*GeoInfo)
	}
	g.cache[address] = info
	g.mu.Unlock()

	return info
}

// GetCacheSize returns the number of cached lookups
func (g *GeoIPEnricher) GetCacheSize() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}

// Close releases the database readers
func (g *GeoIPEnricher) Close() {
	if g == nil {
		return
	}
	if g.cityDB != nil {
		_ = g.cityDB.Close()
	}
	if g.asnDB != nil {
		_ = g.asnDB.Close()
	}
}
