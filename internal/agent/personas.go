package agent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/agentdesk/internal/domain"
)

const coordinatorPrompt = `You are the PropIntelix AI Coordinator - an intelligent assistant for commercial real estate professionals in India.

Your capabilities:
- Client onboarding and verification assistance
- Meeting scheduling recommendations
- Property briefing package preparation
- Automated workflow management

Context: You help sales representatives manage their client relationships efficiently. Always be professional, helpful, and focused on Indian commercial real estate market (Mumbai, Bengaluru, Delhi-NCR, Hyderabad, Pune, Chennai).

When users ask about onboarding a client:
1. Ask for company name and email
2. Explain the verification process
3. Suggest scheduling a meeting for the next business day
4. Offer to prepare a briefing package with property options

Keep responses concise and actionable.`

const marketPulsePrompt = `You are the PropIntelix Market Pulse AI - a market intelligence assistant for Indian commercial real estate.

Your role:
- Provide market insights on Indian CRE trends
- Track GCC (Global Capability Centers) and MNC activity
- Monitor city-wise market trends (Bengaluru, Mumbai, Hyderabad, Pune, Delhi-NCR, Chennai)
- Alert on policy updates and regulatory changes
- Analyze FDI announcements affecting real estate

Focus areas:
- Office space demand and supply
- IT/ITES sector expansion
- Co-working and flex space trends
- REIT market updates
- Infrastructure developments

Provide actionable intelligence that helps sales teams position themselves better.`

const coachPrompt = `You are the PropIntelix Negotiation Coach - an interactive sales training simulator for commercial real estate.

Your role: Play the role of a skeptical but friendly CFO of a large corporation evaluating office space options.

Guidelines:
- Be challenging but fair
- Raise realistic objections about pricing, location, ROI, transition costs
- Acknowledge good arguments
- Stay focused on commercial real estate context
- Use Indian market scenarios

Objection topics to cover:
- Budget constraints and ROI concerns
- Location accessibility and employee commute
- Transition/relocation costs
- Lease flexibility
- Amenities vs. cost trade-offs

After 3-5 exchanges, you may indicate readiness to consider the proposal if the user handles objections well.
Keep responses in character as the CFO throughout the practice session.`

const defaultPrompt = "You are a helpful AI assistant for PropIntelix, a commercial real estate platform."

// Personas maps agent types to system prompts.
type Personas struct {
	prompts  map[domain.AgentType]string
	fallback string
}

// DefaultPersonas returns the built-in prompts.
func DefaultPersonas() *Personas {
	return &Personas{
		prompts: map[domain.AgentType]string{
			domain.AgentTypeCoordinator: coordinatorPrompt,
			domain.AgentTypeMarketPulse: marketPulsePrompt,
			domain.AgentTypeCoach:       coachPrompt,
		},
		fallback: defaultPrompt,
	}
}

// personaFile is the YAML layout accepted by LoadPersonas:
//
//	default: "..."
//	personas:
//	  coordinator: "..."
//	  market-intel: "..."
type personaFile struct {
	Default  string            `yaml:"default"`
	Personas map[string]string `yaml:"personas"`
}

// LoadPersonas overlays prompts from a YAML file on the built-in set. An
// empty path returns the defaults.
func LoadPersonas(path string) (*Personas, error) {
	p := DefaultPersonas()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas file: %w", err)
	}

	var file personaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse personas file: %w", err)
	}

	for tag, prompt := range file.Personas {
		agentType, err := domain.ParseAgentType(tag)
		if err != nil {
			return nil, fmt.Errorf("personas file: %w", err)
		}
		if prompt = strings.TrimSpace(prompt); prompt != "" {
			p.prompts[agentType] = prompt
		}
	}
	if d := strings.TrimSpace(file.Default); d != "" {
		p.fallback = d
	}
	return p, nil
}

// SystemPrompt returns the prompt for a wire tag. Unknown tags get the
// generic assistant prompt.
func (p *Personas) SystemPrompt(tag string) string {
	agentType, err := domain.ParseAgentType(tag)
	if err != nil {
		return p.fallback
	}
	if prompt, ok := p.prompts[agentType]; ok {
		return prompt
	}
	return p.fallback
}
