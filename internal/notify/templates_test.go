package notify

import (
	"strings"
	"testing"

	"github.com/hamed0406/alertack/internal/domain"
)

func TestRender_SubjectAndBodies(t *testing.T) {
	tmpl, err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	a := domain.Alert{
		ServiceID: 11, HostID: 7,
		ServiceName: "Disk /", HostName: "web01",
		Status:      domain.StatusCritical,
		Information: "disk 95% full\n<root> partition",
	}
	msg, err := tmpl.Render(a)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg.Subject != "CRITICAL - Disk / on web01" {
		t.Errorf("subject = %q", msg.Subject)
	}

	wantPlain := "Dear IT team,\nCentreon has detected an unexpected event:\n\n" +
		"disk 95% full\n<root> partition\n\n" +
		"Thank you for your support and action.\nRegards,\nMonitoring Team"
	if msg.Plain != wantPlain {
		t.Errorf("plain body:\n%q\nwant:\n%q", msg.Plain, wantPlain)
	}

	if !strings.Contains(msg.HTML, "disk 95% full<br>&lt;root&gt; partition") {
		t.Errorf("html must escape and keep line breaks:\n%s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "#d32f2f") {
		t.Errorf("html missing status color")
	}
}

func TestRender_EmptyInformation(t *testing.T) {
	tmpl, err := LoadTemplates()
	if err != nil {
		t.Fatal(err)
	}
	msg, err := tmpl.Render(domain.Alert{ServiceName: "Ping", HostName: "h", Status: domain.StatusWarning})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg.Plain, noInformation) || !strings.Contains(msg.HTML, noInformation) {
		t.Fatal("expected placeholder text")
	}
}
