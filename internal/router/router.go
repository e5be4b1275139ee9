// Package router maps inbound request types to specialist capabilities.
package router

import "github.com/vmont3/veramkt-sub001/domain"

// Route is the resolved target for a request type.
type Route struct {
	Capability string
	TaskType   domain.TaskType
	Priority   domain.TaskPriority
}

// DefaultCapability handles request types the table does not know.
// Unknown types degrade to conversation instead of erroring.
const DefaultCapability = "ConversationalGeneral"

var routes = map[string]Route{
	"CREATE_SOCIAL_POST":    {Capability: "CopySocialShort", TaskType: domain.TaskTypeCopy, Priority: domain.TaskPriorityMedium},
	"CREATE_AD_COPY":        {Capability: "CopyAdPerformance", TaskType: domain.TaskTypeCopy, Priority: domain.TaskPriorityHigh},
	"CREATE_EMAIL_CAMPAIGN": {Capability: "EmailLifecycle", TaskType: domain.TaskTypeEmail, Priority: domain.TaskPriorityMedium},
	"CREATE_VISUAL":         {Capability: "DesignStatic", TaskType: domain.TaskTypeDesign, Priority: domain.TaskPriorityMedium},
	"CREATE_BRAND_KIT":      {Capability: "BrandIdentity", TaskType: domain.TaskTypeBrand, Priority: domain.TaskPriorityHigh},
	"ANALYZE_PERFORMANCE":   {Capability: "PerformanceInsight", TaskType: domain.TaskTypePerformance, Priority: domain.TaskPriorityLow},
	"MONITOR_CAMPAIGN":      {Capability: "CampaignMonitor", TaskType: domain.TaskTypeMonitor, Priority: domain.TaskPriorityLow},
	"PUBLISH_CONTENT":       {Capability: "PublishDispatch", TaskType: domain.TaskTypePublish, Priority: domain.TaskPriorityHigh},
}

// Resolve maps a request type to its route. Unknown types fall back to the
// generic conversational capability. Pure mapping, no side effects.
func Resolve(requestType string) Route {
	if r, ok := routes[requestType]; ok {
		return r
	}
	return Route{
		Capability: DefaultCapability,
		TaskType:   domain.TaskTypeConversation,
		Priority:   domain.TaskPriorityLow,
	}
}

// KnownTypes returns the closed set of known request types.
func KnownTypes() []string {
	types := make([]string, 0, len(routes))
	for t := range routes {
		types = append(types, t)
	}
	return types
}
