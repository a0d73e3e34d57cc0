package services

import (
	"trails/application/ports"
	"trails/domain/core/aggregates"
	"trails/domain/core/entities"
	"trails/domain/core/valueobjects"
)

// ContextAssembler turns a node's ancestry into an ordered, provider-neutral
// message list. The walk is a backward traversal from the target to the
// chain root with a visited set, so accidental cycles in the edge set
// terminate instead of looping.
type ContextAssembler struct {
	graph *GraphService
}

// NewContextAssembler creates a context assembler over the graph service
func NewContextAssembler(graph *GraphService) *ContextAssembler {
	return &ContextAssembler{graph: graph}
}

// BuildContext assembles the conversation context for a node: one message
// per visible ancestor in root-to-target order, the target's own message
// last, and a leading system message when the chain adopts a persona.
func (a *ContextAssembler) BuildContext(canvasID valueobjects.CanvasID, nodeID valueobjects.NodeID) ([]ports.Message, error) {
	personas := make(map[string]entities.Persona)
	for _, p := range a.graph.Personas() {
		personas[p.ID] = p
	}

	var messages []ports.Message
	err := a.graph.Read(canvasID, func(canvas *aggregates.Canvas) error {
		chain, err := a.collectChain(canvas, nodeID)
		if err != nil {
			return err
		}
		messages = a.render(chain, personas)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// collectChain walks parent links from the target to the root and returns
// the nodes in root-to-target order.
func (a *ContextAssembler) collectChain(canvas *aggregates.Canvas, nodeID valueobjects.NodeID) ([]*entities.Node, error) {
	var reversed []*entities.Node
	visited := make(map[string]struct{})

	current := nodeID
	for {
		if _, seen := visited[current.String()]; seen {
			break
		}
		visited[current.String()] = struct{}{}

		node, err := canvas.Node(current)
		if err != nil {
			if len(reversed) == 0 {
				return nil, err
			}
			// A dangling parent reference ends the walk at the last
			// resolvable ancestor.
			break
		}
		reversed = append(reversed, node)

		parent, ok := canvas.ParentOf(current)
		if !ok {
			break
		}
		current = parent
	}

	chain := make([]*entities.Node, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		chain = append(chain, reversed[i])
	}
	return chain, nil
}

// render maps the chain to messages. Hidden nodes contribute nothing but
// never break the chain. The persona of the first prompt in the chain that
// names one becomes the leading system message. Only image attachments are
// inlined; file attachments stay out of the model context.
func (a *ContextAssembler) render(chain []*entities.Node, personas map[string]entities.Persona) []ports.Message {
	messages := make([]ports.Message, 0, len(chain)+1)

	if persona, ok := chainPersona(chain, personas); ok {
		messages = append(messages, ports.Message{
			Role:  ports.RoleSystem,
			Parts: []ports.ContentPart{ports.TextPart(persona.Content)},
		})
	}

	for _, node := range chain {
		if node.Hidden() {
			continue
		}
		switch node.Kind() {
		case entities.KindPrompt:
			prompt, _ := node.Prompt()
			parts := []ports.ContentPart{ports.TextPart(prompt.Content)}
			for _, att := range prompt.Attachments {
				if att.Kind == entities.AttachmentImage {
					parts = append(parts, ports.ImagePart(att.Payload, att.MimeType))
				}
			}
			messages = append(messages, ports.Message{Role: ports.RoleUser, Parts: parts})
		case entities.KindResponse:
			messages = append(messages, ports.Message{
				Role:  ports.RoleAssistant,
				Parts: []ports.ContentPart{ports.TextPart(node.Content())},
			})
		case entities.KindMerge:
			// A merged digest reads as one prior assistant turn. Per-source
			// attribution is already flattened into the text.
			messages = append(messages, ports.Message{
				Role:  ports.RoleAssistant,
				Parts: []ports.ContentPart{ports.TextPart(node.Content())},
			})
		}
	}
	return messages
}

func chainPersona(chain []*entities.Node, personas map[string]entities.Persona) (entities.Persona, bool) {
	for _, node := range chain {
		prompt, ok := node.Prompt()
		if !ok || prompt.PersonaID == "" {
			continue
		}
		// A deleted persona degrades to no system message.
		persona, found := personas[prompt.PersonaID]
		return persona, found
	}
	return entities.Persona{}, false
}
