package farms

import (
	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
	"carbon-scribe/mrv/mrv-backend/pkg/geospatial"
)

// EnrichWithBoundaries attaches surveyed boundary areas to matching records.
// A record without a declared area_ha takes the surveyed area; a declared
// area is kept. Returns the number of records that matched a boundary.
func EnrichWithBoundaries(records []*calculation.FarmRecord, boundaries []geospatial.Boundary) int {
	areas := geospatial.AreaByFarm(boundaries)

	matched := 0
	for _, record := range records {
		if record == nil {
			continue
		}
		area, ok := areas[record.FarmID]
		if !ok || record.FarmID == "" {
			continue
		}
		matched++

		surveyed := area
		record.BoundaryAreaHa = &surveyed
		if record.AreaHa == nil {
			declared := area
			record.AreaHa = &declared
		}
	}
	return matched
}
