// Package seed loads the demo knowledge base and incident history so a
// fresh instance answers queries immediately.
package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/opskb/internal/domain"
)

// Indexer is the write path used to load seed data.
type Indexer interface {
	UpsertDocument(ctx context.Context, doc *domain.Document) (bool, error)
	UpsertIncident(ctx context.Context, in *domain.Incident) (bool, error)
}

// Load upserts the sample corpus. Idempotent: re-running replaces the same
// IDs in place.
func Load(ctx context.Context, idx Indexer, logger *zap.Logger) error {
	for _, doc := range sampleDocuments() {
		d := doc
		if _, err := idx.UpsertDocument(ctx, &d); err != nil {
			return fmt.Errorf("seed document %s: %w", d.ID, err)
		}
	}
	for _, in := range sampleIncidents() {
		i := in
		if _, err := idx.UpsertIncident(ctx, &i); err != nil {
			return fmt.Errorf("seed incident %s: %w", i.ID, err)
		}
	}

	logger.Info("seed data loaded",
		zap.Int("documents", len(sampleDocuments())),
		zap.Int("incidents", len(sampleIncidents())),
	)
	return nil
}

func sampleDocuments() []domain.Document {
	return []domain.Document{
		{
			ID:       "kb_001",
			Title:    "Network Troubleshooting Guide",
			Body:     "Network connectivity issues can be resolved by checking physical connections, verifying IP configuration, testing DNS resolution, and examining firewall rules. Common tools include ping, traceroute, nslookup, and netstat.",
			Category: "Network",
			DocType:  "procedure",
			Tags:     []string{"network", "troubleshooting", "connectivity"},
		},
		{
			ID:       "kb_002",
			Title:    "Database Connection Timeout Resolution",
			Body:     "Database connection timeouts typically occur due to connection pool exhaustion, long-running queries, or network latency. Increase connection timeout values, optimize queries, and monitor connection pool usage.",
			Category: "Database",
			DocType:  "troubleshooting",
			Tags:     []string{"database", "timeout", "performance"},
		},
		{
			ID:       "kb_003",
			Title:    "Email Server Configuration",
			Body:     "Email server setup requires configuring SMTP, IMAP/POP3 settings, setting up DNS MX records, implementing security protocols like SPF, DKIM, and DMARC, and configuring anti-spam measures.",
			Category: "Email",
			DocType:  "configuration",
			Tags:     []string{"email", "smtp", "configuration"},
		},
		{
			ID:       "kb_004",
			Title:    "Security Incident Response Playbook",
			Body:     "Security incident response involves immediate containment, evidence preservation, threat analysis, communication to stakeholders, remediation steps, and post-incident review. Follow the incident severity matrix for escalation.",
			Category: "Security",
			DocType:  "playbook",
			Tags:     []string{"security", "incident", "response"},
		},
		{
			ID:       "kb_005",
			Title:    "Backup and Recovery Procedures",
			Body:     "Implement 3-2-1 backup strategy: 3 copies of data, 2 different media types, 1 offsite backup. Test backup integrity regularly, document recovery procedures, and maintain recovery time objectives (RTO) and recovery point objectives (RPO).",
			Category: "Backup",
			DocType:  "procedure",
			Tags:     []string{"backup", "recovery", "disaster"},
		},
		{
			ID:       "kb_006",
			Title:    "Load Balancer Configuration",
			Body:     "Configure load balancer health checks, set up backend server pools, implement SSL termination, configure session persistence, and monitor traffic distribution. Use weighted routing for gradual traffic shifts.",
			Category: "Infrastructure",
			DocType:  "configuration",
			Tags:     []string{"load-balancer", "infrastructure", "scaling"},
		},
		{
			ID:       "kb_007",
			Title:    "API Rate Limiting Implementation",
			Body:     "Implement rate limiting using token bucket or sliding window algorithms. Configure limits per user, IP, or API key. Return HTTP 429 status codes when limits exceeded. Monitor rate limit metrics.",
			Category: "API",
			DocType:  "implementation",
			Tags:     []string{"api", "rate-limiting", "performance"},
		},
		{
			ID:       "kb_008",
			Title:    "Container Orchestration Best Practices",
			Body:     "Use resource limits and requests, implement health checks, configure rolling updates, use secrets management, implement proper logging, and monitor container metrics. Follow the principle of least privilege.",
			Category: "Containers",
			DocType:  "best-practices",
			Tags:     []string{"containers", "kubernetes", "orchestration"},
		},
	}
}

func sampleIncidents() []domain.Incident {
	return []domain.Incident{
		{
			ID:                "INC-2024-001",
			Title:             "Email server not responding",
			Description:       "Users unable to send or receive emails, SMTP timeouts reported across the office",
			Category:          "Email Infrastructure",
			Severity:          domain.SeverityHigh,
			Priority:          domain.PriorityHigh,
			Status:            "resolved",
			ResolutionMinutes: 45,
			ResolvedAt:        ts("2024-02-15T14:30:00Z"),
		},
		{
			ID:                "INC-2024-002",
			Title:             "Database connection timeout",
			Description:       "Application showing database connection timeout errors",
			Category:          "Database",
			Severity:          domain.SeverityMedium,
			Priority:          domain.PriorityNormal,
			Status:            "resolved",
			ResolutionMinutes: 22,
			ResolvedAt:        ts("2024-02-18T09:15:00Z"),
		},
		{
			ID:                "INC-2024-003",
			Title:             "Website loading slowly",
			Description:       "Website pages taking more than 10 seconds to load",
			Category:          "Performance",
			Severity:          domain.SeverityMedium,
			Priority:          domain.PriorityNormal,
			Status:            "resolved",
			ResolutionMinutes: 67,
			ResolvedAt:        ts("2024-02-20T16:45:00Z"),
		},
		{
			ID:                "INC-2024-004",
			Title:             "Network connectivity issues",
			Description:       "Intermittent network connectivity problems affecting multiple users",
			Category:          "Network",
			Severity:          domain.SeverityHigh,
			Priority:          domain.PriorityHigh,
			Status:            "resolved",
			ResolutionMinutes: 89,
			ResolvedAt:        ts("2024-02-25T11:20:00Z"),
		},
		{
			ID:                "INC-2024-005",
			Title:             "Login authentication failure",
			Description:       "Users cannot log in with correct credentials",
			Category:          "Authentication",
			Severity:          domain.SeverityCritical,
			Priority:          domain.PriorityUrgent,
			Status:            "resolved",
			ResolutionMinutes: 34,
			ResolvedAt:        ts("2024-03-01T08:30:00Z"),
		},
	}
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}
