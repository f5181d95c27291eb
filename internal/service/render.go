package service

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/cespare/xxhash"

	"phalerts.app/server/internal/model"
)

// DefaultTitleTemplate is used when no template is configured or
// supplied with the request.
const DefaultTitleTemplate = "{{.GroupLabels.alertname}}"

// RenderError reports a title template that failed to parse or
// execute. Input-class: the request is rejected before any remote call
// is made.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering title template: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// TemplateData is the binding environment for title templates.
type TemplateData struct {
	GroupKey          string
	Status            model.NotificationStatus
	GroupLabels       map[string]string
	CommonLabels      map[string]string
	CommonAnnotations map[string]string
	ExternalURL       string
	Alerts            []model.Alert
}

// Renderer derives a task title and description from a notification.
// Identical notification and template yield byte-identical output, so
// Alertmanager re-deliveries resolve to the same task.
type Renderer interface {
	// Render renders the notification. titleTemplate overrides the
	// configured default when non-empty.
	Render(n *model.Notification, titleTemplate string) (*model.RenderedIssue, error)
}

type renderer struct {
	defaultTitle *template.Template
}

var _ Renderer = &renderer{}

// NewRenderer parses the default title template eagerly, so a broken
// configured template fails at startup rather than on first request.
func NewRenderer(defaultTitleTemplate string) (Renderer, error) {
	tmpl, err := parseTitleTemplate(defaultTitleTemplate)
	if err != nil {
		return nil, err
	}
	return &renderer{defaultTitle: tmpl}, nil
}

func (r *renderer) Render(n *model.Notification, titleTemplate string) (*model.RenderedIssue, error) {
	tmpl := r.defaultTitle
	if titleTemplate != "" {
		var err error
		tmpl, err = parseTitleTemplate(titleTemplate)
		if err != nil {
			return nil, err
		}
	}

	// Alertmanager does not guarantee alert order across deliveries of
	// the same group; sort by label values so the rendered output is
	// stable.
	alerts := sortedAlerts(n.Alerts)

	data := TemplateData{
		GroupKey:          n.GroupKey,
		Status:            n.Status,
		GroupLabels:       n.GroupLabels,
		CommonLabels:      n.CommonLabels,
		CommonAnnotations: n.CommonAnnotations,
		ExternalURL:       n.ExternalURL,
		Alerts:            alerts,
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, &RenderError{Template: tmpl.Name(), Err: err}
	}
	title := strings.TrimSpace(buf.String())

	fingerprint := groupFingerprint(n.GroupKey, alerts)

	return &model.RenderedIssue{
		Title:       title,
		Description: renderDescription(n, alerts, fingerprint),
		Fingerprint: fingerprint,
	}, nil
}

func parseTitleTemplate(s string) (*template.Template, error) {
	tmpl, err := template.New("title").Option("missingkey=error").Parse(s)
	if err != nil {
		return nil, &RenderError{Template: s, Err: err}
	}
	return tmpl, nil
}

// renderDescription produces the fixed Remarkup layout: common
// annotations and labels, one block per firing alert, and the trailing
// fingerprint line.
func renderDescription(n *model.Notification, alerts []model.Alert, fingerprint string) string {
	var b strings.Builder

	b.WriteString("== Common information\n\n")
	writeSortedBullets(&b, n.CommonAnnotations)
	writeSortedBullets(&b, n.CommonLabels)

	b.WriteString("\n== Firing alerts\n")
	for _, a := range alerts {
		if a.Status != model.StatusFiring {
			continue
		}
		b.WriteString("\n---\n\n")
		writeSortedBullets(&b, a.Annotations)
		writeSortedBullets(&b, a.Labels)
		if a.GeneratorURL != "" {
			fmt.Fprintf(&b, "* [Source](%s)\n", a.GeneratorURL)
		}
	}

	fmt.Fprintf(&b, "\nFingerprint: %s\n", fingerprint)
	return b.String()
}

// groupFingerprint hashes the group key and each alert's status and
// sorted label set. Alerts must already be in their deterministic
// order.
func groupFingerprint(groupKey string, alerts []model.Alert) string {
	h := xxhash.New()
	io.WriteString(h, groupKey)
	for _, a := range alerts {
		io.WriteString(h, "\x1e")
		io.WriteString(h, string(a.Status))
		for _, k := range sortedKeys(a.Labels) {
			io.WriteString(h, "\x1f"+k+"="+a.Labels[k])
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

var fingerprintLine = regexp.MustCompile(`(?m)^Fingerprint: ([0-9a-f]{16})\s*$`)

// DescriptionFingerprint extracts the fingerprint embedded in an
// existing task description. Returns "" when the description carries
// none (for example after a manual edit), which forces an update.
func DescriptionFingerprint(description string) string {
	m := fingerprintLine.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return m[1]
}

func sortedAlerts(alerts []model.Alert) []model.Alert {
	out := make([]model.Alert, len(alerts))
	copy(out, alerts)
	sort.SliceStable(out, func(i, j int) bool {
		return alertSortKey(out[i]) < alertSortKey(out[j])
	})
	return out
}

func alertSortKey(a model.Alert) string {
	vals := make([]string, 0, len(a.Labels))
	for _, v := range a.Labels {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return strings.Join(vals, "\x1f")
}

func writeSortedBullets(b *strings.Builder, kv map[string]string) {
	for _, k := range sortedKeys(kv) {
		fmt.Fprintf(b, "* **%s**: %s\n", k, kv[k])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
