package a2a

// AgentCard is the self-description an agent publishes for discovery.
type AgentCard struct {
	ProtocolVersion                   string                `json:"protocolVersion"`
	Name                              string                `json:"name"`
	Description                       string                `json:"description"`
	URL                               string                `json:"url"`
	PreferredTransport                string                `json:"preferredTransport,omitzero"`
	AdditionalInterfaces              []AgentInterface      `json:"additionalInterfaces,omitempty"`
	Version                           string                `json:"version"`
	DocumentationURL                  string                `json:"documentationUrl,omitzero"`
	IconURL                           string                `json:"iconUrl,omitzero"`
	Provider                          *AgentProvider        `json:"provider,omitempty"`
	Capabilities                      AgentCapabilities     `json:"capabilities"`
	SecuritySchemes                   map[string]any        `json:"securitySchemes,omitempty"`
	Security                          []map[string][]string `json:"security,omitempty"`
	DefaultInputModes                 []string              `json:"defaultInputModes"`
	DefaultOutputModes                []string              `json:"defaultOutputModes"`
	Skills                            []AgentSkill          `json:"skills"`
	SupportsAuthenticatedExtendedCard bool                  `json:"supportsAuthenticatedExtendedCard,omitzero"`
}

// Transport protocol labels used in AgentInterface and PreferredTransport.
const (
	TransportJSONRPC  = "JSONRPC"
	TransportHTTPJSON = "HTTP+JSON"
)

// AgentInterface advertises an additional endpoint for the agent.
type AgentInterface struct {
	URL       string `json:"url"`
	Transport string `json:"transport"`
}

// AgentProvider names the organization operating the agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url"`
}

// AgentCapabilities lists optional protocol features the agent supports.
type AgentCapabilities struct {
	Streaming              bool             `json:"streaming,omitzero"`
	PushNotifications      bool             `json:"pushNotifications,omitzero"`
	StateTransitionHistory bool             `json:"stateTransitionHistory,omitzero"`
	Extensions             []AgentExtension `json:"extensions,omitempty"`
}

// AgentExtension declares an extension URI the agent understands.
type AgentExtension struct {
	URI         string         `json:"uri"`
	Description string         `json:"description,omitzero"`
	Required    bool           `json:"required,omitzero"`
	Params      map[string]any `json:"params,omitempty"`
}

// AgentSkill describes one capability of the agent.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}
