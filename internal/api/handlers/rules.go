package handlers

import (
	"net/http"

	"github.com/dlg0/agent-zero/internal/api/models"

	"github.com/gin-gonic/gin"
)

// RulesHandler handles decision-rule metadata requests
type RulesHandler struct{}

// NewRulesHandler creates a new rules handler
func NewRulesHandler() *RulesHandler {
	return &RulesHandler{}
}

// ListRules handles GET /api/v1/rules
func (h *RulesHandler) ListRules(c *gin.Context) {
	rules := []models.RuleInfo{
		{
			Name:        "npv_threshold",
			Description: "Producer rule. Invests one step when the NPV of new capacity clears the threshold, retires after a sustained run of negative operating NPV, otherwise holds.",
			Parameters: []models.ParameterInfo{
				{
					Name:        "commodity",
					Type:        "string",
					Description: "Commodity the producer supplies (e.g. 'electricity')",
				},
				{
					Name:        "invest_step",
					Type:        "float",
					Description: "Capacity added per invest decision",
					Default:     10.0,
				},
				{
					Name:        "max_capacity",
					Type:        "float",
					Description: "Hard capacity ceiling; 0 means unlimited",
					Default:     0.0,
				},
				{
					Name:        "invest_threshold",
					Type:        "float",
					Description: "Minimum NPV required to invest",
					Default:     0.0,
				},
				{
					Name:        "persistence_window",
					Type:        "int",
					Description: "Consecutive negative-NPV years before retiring",
					Default:     2,
				},
			},
		},
		{
			Name:        "price_responsive",
			Description: "Consumer rule. Demand ramps linearly from demand_high at a zero price to demand_low at twice the reference price.",
			Parameters: []models.ParameterInfo{
				{
					Name:        "commodity",
					Type:        "string",
					Description: "Commodity the consumer demands",
				},
				{
					Name:        "demand_low",
					Type:        "float",
					Description: "Demand at or above twice the reference price",
					Default:     80.0,
				},
				{
					Name:        "demand_high",
					Type:        "float",
					Description: "Demand at a zero price",
					Default:     100.0,
				},
			},
		},
		{
			Name:        "policy_setter",
			Description: "Policy rule. Reads the year's value from the policy schedule and publishes it to the market; never trades.",
			Parameters: []models.ParameterInfo{
				{
					Name:        "policy_type",
					Type:        "string",
					Description: "Schedule row in the policy table",
					Default:     "carbon_price",
				},
			},
		},
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}
