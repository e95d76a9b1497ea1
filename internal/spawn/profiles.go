package spawn

// Known agent types.
const (
	TypeDeveloper     = "robo-developer"
	TypeQA            = "robo-qa"
	TypeSystemAnalyst = "robo-system-analyst"
	TypeDevOpsSRE     = "robo-devops-sre"
	TypeUX            = "robo-ux"
)

// ResourceProfile is the static per-type resource envelope attached to spawn
// requests.
type ResourceProfile struct {
	MemoryMB   int `json:"memory_mb"`
	CPUPercent int `json:"cpu_percent"`
	MaxTasks   int `json:"max_tasks"`
}

// TokenProfile is the static per-type token-accounting envelope. Limits and
// thresholds come from the token-accounting collaborator's configuration;
// no cost is computed here.
type TokenProfile struct {
	DailyLimit        int64   `json:"daily_limit"`
	PerRequestLimit   int64   `json:"per_request_limit"`
	CostLimitUSD      float64 `json:"cost_limit_usd"`
	WarnThreshold     float64 `json:"warn_threshold"`
	CriticalThreshold float64 `json:"critical_threshold"`
}

// resourceProfiles is the static per-agent-type resource table.
var resourceProfiles = map[string]ResourceProfile{
	TypeDeveloper:     {MemoryMB: 2048, CPUPercent: 80, MaxTasks: 3},
	TypeQA:            {MemoryMB: 1024, CPUPercent: 60, MaxTasks: 4},
	TypeSystemAnalyst: {MemoryMB: 1024, CPUPercent: 40, MaxTasks: 2},
	TypeDevOpsSRE:     {MemoryMB: 1536, CPUPercent: 70, MaxTasks: 2},
	TypeUX:            {MemoryMB: 768, CPUPercent: 40, MaxTasks: 2},
}

// tokenProfiles is the static per-agent-type token budget table.
var tokenProfiles = map[string]TokenProfile{
	TypeDeveloper:     {DailyLimit: 2_000_000, PerRequestLimit: 64_000, CostLimitUSD: 40, WarnThreshold: 0.7, CriticalThreshold: 0.9},
	TypeQA:            {DailyLimit: 1_200_000, PerRequestLimit: 32_000, CostLimitUSD: 25, WarnThreshold: 0.7, CriticalThreshold: 0.9},
	TypeSystemAnalyst: {DailyLimit: 800_000, PerRequestLimit: 48_000, CostLimitUSD: 20, WarnThreshold: 0.7, CriticalThreshold: 0.9},
	TypeDevOpsSRE:     {DailyLimit: 1_000_000, PerRequestLimit: 32_000, CostLimitUSD: 25, WarnThreshold: 0.75, CriticalThreshold: 0.95},
	TypeUX:            {DailyLimit: 600_000, PerRequestLimit: 24_000, CostLimitUSD: 15, WarnThreshold: 0.7, CriticalThreshold: 0.9},
}

// defaultResourceProfile covers agent types without a table entry.
var defaultResourceProfile = ResourceProfile{MemoryMB: 512, CPUPercent: 30, MaxTasks: 1}

// defaultTokenProfile covers agent types without a table entry.
var defaultTokenProfile = TokenProfile{DailyLimit: 200_000, PerRequestLimit: 16_000, CostLimitUSD: 5, WarnThreshold: 0.7, CriticalThreshold: 0.9}

// ResourceProfileFor looks up the resource profile for an agent type.
func ResourceProfileFor(agentType string) ResourceProfile {
	if p, ok := resourceProfiles[agentType]; ok {
		return p
	}
	return defaultResourceProfile
}

// TokenProfileFor looks up the token profile for an agent type.
func TokenProfileFor(agentType string) TokenProfile {
	if p, ok := tokenProfiles[agentType]; ok {
		return p
	}
	return defaultTokenProfile
}
