package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"github.com/sirupsen/logrus"

	"afyacal/internal/consultation"
)

var errNoFont = errors.New("no usable font for PDF")

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// Common DejaVu locations on Alpine and Debian images.
var defaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// Service sends end-of-session summaries to the doctor's Telegram chat, as a
// PDF when a font is available and as plain text otherwise.
type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	fontPaths    []string
	logger       *logrus.Logger
	now          func() time.Time
}

func NewService(tg TelegramClient, doctorChatID int64, logger *logrus.Logger) *Service {
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		fontPaths:    defaultFontPaths,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *Service) SendSummaryReport(ctx context.Context, sess consultation.Session, summary string) error {
	log := s.logger.WithFields(logrus.Fields{
		"Function":  "SendSummaryReport",
		"SessionID": sess.ID,
	})
	if s.doctorChatID == 0 {
		log.Debug("No doctor chat configured, skipping report")
		return nil
	}

	doc, err := s.renderPDF(sess, summary)
	if err != nil {
		log.WithError(err).Warn("PDF rendering failed, sending text report")
		return s.tgClient.SendMessage(ctx, s.doctorChatID, FormatText(sess, summary, s.now()))
	}

	fileName := fmt.Sprintf("summary_%s.pdf", sess.ID.String())
	if err := s.tgClient.SendDocument(ctx, s.doctorChatID, doc, fileName); err != nil {
		return err
	}
	log.Info("Summary report sent")
	return nil
}

// FormatText renders the report as a plain Telegram message.
func FormatText(sess consultation.Session, summary string, at time.Time) string {
	var b strings.Builder
	b.WriteString("Consultation summary\n")
	fmt.Fprintf(&b, "Date: %s\n", at.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "Session: %s\n", sess.ID)
	fmt.Fprintf(&b, "Patient: %s\n", sess.PatientID)
	fmt.Fprintf(&b, "Professional: %s (%s)\n", sess.ProfessionalID, sess.Type)
	if sess.Recommendation != "" {
		fmt.Fprintf(&b, "Triage recommendation: %s\n", sess.Recommendation)
	}
	b.WriteString("\n")
	b.WriteString(summary)
	return b.String()
}

func (s *Service) renderPDF(sess consultation.Session, summary string) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("%w: %v", errNoFont, fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Consultation summary")
	pdf.Br(30)

	if err := pdf.SetFont("DejaVu", "", 12); err != nil {
		return nil, err
	}
	header := []string{
		fmt.Sprintf("Date: %s", s.now().Format("02.01.2006 15:04")),
		fmt.Sprintf("Patient: %s", sess.PatientID),
		fmt.Sprintf("Professional: %s (%s)", sess.ProfessionalID, sess.Type),
	}
	for _, line := range header {
		pdf.Cell(nil, line)
		pdf.Br(15)
	}
	pdf.Br(10)

	if sess.Recommendation != "" {
		if err := writeSection(&pdf, "Triage recommendation:", sess.Recommendation); err != nil {
			return nil, err
		}
		pdf.Br(15)
	}
	if err := writeSection(&pdf, "Summary and next steps:", summary); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSection(pdf *gopdf.GoPdf, title, body string) error {
	if err := pdf.SetFont("DejaVu", "", 14); err != nil {
		return err
	}
	pdf.Cell(nil, title)
	pdf.Br(15)

	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return err
	}
	for _, para := range strings.Split(body, "\n") {
		lines, err := pdf.SplitText(para, 500)
		if err != nil {
			// SplitText rejects empty strings.
			pdf.Br(12)
			continue
		}
		for _, l := range lines {
			pdf.Cell(nil, l)
			pdf.Br(12)
		}
	}
	return nil
}
