package relay

import (
	"github.com/ashureev/sparkweek/internal/domain"
	"github.com/samber/lo"
)

// ProfileSchema describes the structured profile extracted from discovery.
func ProfileSchema() *Schema {
	stringList := func() *Schema { return &Schema{Type: TypeArray, Items: &Schema{Type: TypeString}} }

	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"personality_data": {
				Type: TypeObject,
				Properties: map[string]*Schema{
					"traits":    stringList(),
					"interests": stringList(),
					"goals":     stringList(),
				},
			},
			"preferences": {
				Type: TypeObject,
				Properties: map[string]*Schema{
					"budget": {
						Type: TypeString,
						Enum: lo.Map(domain.Budgets, func(b domain.Budget, _ int) string { return string(b) }),
					},
					"time_available": {
						Type: TypeString,
						Enum: lo.Map(domain.TimeAvailabilities, func(t domain.TimeAvailability, _ int) string { return string(t) }),
					},
					"environment":    stringList(),
					"activity_level": {Type: TypeString},
				},
			},
		},
	}
}
