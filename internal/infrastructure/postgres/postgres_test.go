package postgres

import (
	"testing"

	"github.com/paincake00/geotrack/internal/entity"
)

func TestTableFor(t *testing.T) {
	city, err := tableFor(entity.RegionCity)
	if err != nil || city.name != "city_geohashes" || city.idColumn != "city_id" {
		t.Errorf("Unexpected city table: %+v (err=%v)", city, err)
	}
	country, err := tableFor(entity.RegionCountry)
	if err != nil || country.name != "country_geohashes" || country.idColumn != "country_id" {
		t.Errorf("Unexpected country table: %+v (err=%v)", country, err)
	}
	if _, err := tableFor(entity.RegionLocation); err == nil {
		t.Error("Expected error for locations, they have their own query")
	}
}
