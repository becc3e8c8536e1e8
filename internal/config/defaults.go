package config

import "time"

// Defaults used when the corresponding field is empty.
const (
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultServiceName       = "ragchat"
	DefaultGenerationTimeout = 60 * time.Second
	DefaultTemperature       = 0.7
	DefaultMaxTokens         = 1024
)

// DefaultSystemInstruction frames the assistant as a Portuguese-speaking
// document Q&A agent that only searches the corpus for specific questions.
const DefaultSystemInstruction = `Você é um assistente de perguntas e respostas sobre os documentos de Recursos Humanos da organização.

Regras:
1. Perguntas específicas sobre dados, procedimentos ou políticas: busque a resposta nos documentos.
2. Saudações e conversa casual: responda naturalmente, sem buscar nos documentos.
3. Não mencione documentos nem ferramentas ao usuário.
4. Responda de forma curta, natural e em português.
5. Se a informação não estiver disponível, diga "Não tenho essa informação disponível" e sugira contato com o suporte.
6. Se a pergunta for ambígua, peça esclarecimento antes de responder.`

// ApplyDefaults fills empty top-level settings in place.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1
	}

	c := &cfg.Chat
	if c.SystemInstruction == "" {
		c.SystemInstruction = DefaultSystemInstruction
	}
	if c.GenerationTimeout == 0 {
		c.GenerationTimeout = DefaultGenerationTimeout
	}
	if c.Generation.Temperature == nil {
		t := DefaultTemperature
		c.Generation.Temperature = &t
	}
	if c.Generation.MaxTokens == 0 {
		c.Generation.MaxTokens = DefaultMaxTokens
	}
}
