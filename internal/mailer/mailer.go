package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/smtp"
	"net/textproto"

	qrcode "github.com/skip2/go-qrcode"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

const eTicketTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 20px;">
  <div style="max-width: 560px; margin: auto; background: #ffffff; border-radius: 8px; overflow: hidden;">
    <div style="background: #1a73e8; color: #ffffff; padding: 20px; text-align: center;">
      <h2 style="margin: 0;">E-Ticket NaikAjaa</h2>
      <p style="margin: 4px 0 0;">{{.GatewayRef}}</p>
    </div>
    <div style="padding: 20px;">
      <p>Halo <b>{{.PassengerName}}</b>, pembayaran kamu sudah kami terima. Berikut detail tiketmu:</p>
      <table style="width: 100%; border-collapse: collapse;">
        <tr><td style="padding: 6px 0; color: #666;">Rute</td><td style="padding: 6px 0;"><b>{{.Route}}</b></td></tr>
        <tr><td style="padding: 6px 0; color: #666;">Operator</td><td style="padding: 6px 0;">{{.Operator}}</td></tr>
        <tr><td style="padding: 6px 0; color: #666;">Jadwal</td><td style="padding: 6px 0;">{{.TimeSlot}}</td></tr>
        <tr><td style="padding: 6px 0; color: #666;">Tanggal</td><td style="padding: 6px 0;">{{.TravelDate}}</td></tr>
        <tr><td style="padding: 6px 0; color: #666;">Nomor Kursi</td><td style="padding: 6px 0;"><b>{{.SeatNumber}}</b></td></tr>
        <tr><td style="padding: 6px 0; color: #666;">Total Bayar</td><td style="padding: 6px 0;">Rp {{.Total}}</td></tr>
        <tr><td style="padding: 6px 0; color: #666;">Bukti Digital</td><td style="padding: 6px 0; font-size: 12px; word-break: break-all;">{{.HashLine}}</td></tr>
      </table>
      <div style="text-align: center; margin-top: 20px;">
        <img src="cid:ticket-qr" alt="QR" width="180" height="180"/>
        <p style="color: #999; font-size: 12px;">Tunjukkan QR ini saat boarding.</p>
      </div>
    </div>
  </div>
</body>
</html>`

type ticketView struct {
	GatewayRef    string
	PassengerName string
	Route         string
	Operator      string
	TimeSlot      string
	TravelDate    string
	SeatNumber    string
	Total         int64
	HashLine      string
}

// SMTPMailer sends the e-ticket mail with an inline boarding QR code.
type SMTPMailer struct {
	cfg  config.EmailConfig
	tmpl *template.Template
	log  *logger.Logger

	// send is swappable in tests; the default drives net/smtp.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg config.EmailConfig, log *logger.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:  cfg,
		tmpl: template.Must(template.New("eticket").Parse(eTicketTemplate)),
		log:  log,
		send: smtp.SendMail,
	}
}

// SendETicket renders and dispatches the e-ticket for a settled order.
// The mail carries the mint outcome as-is: a hash when minting succeeded,
// a readable placeholder otherwise.
func (m *SMTPMailer) SendETicket(order models.Order, txHash string) error {
	hashLine := txHash
	switch {
	case order.Status == models.StatusLunasMintFailed || txHash == models.MintFailedHash:
		hashLine = "Penerbitan bukti digital gagal, tiket tetap berlaku."
	case txHash == "":
		hashLine = "PENDING"
	}

	var body bytes.Buffer
	if err := m.tmpl.Execute(&body, ticketView{
		GatewayRef:    order.GatewayRef,
		PassengerName: order.PassengerName,
		Route:         order.Route,
		Operator:      order.Operator,
		TimeSlot:      order.TimeSlot,
		TravelDate:    order.TravelDate,
		SeatNumber:    order.SeatNumber,
		Total:         order.Total,
		HashLine:      hashLine,
	}); err != nil {
		return fmt.Errorf("render e-ticket: %w", err)
	}

	qrPNG, err := qrcode.Encode(order.GatewayRef, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("encode boarding qr: %w", err)
	}

	msg, err := m.composeMessage(order.Email, "E-Ticket Terbit: "+order.GatewayRef, body.Bytes(), qrPNG)
	if err != nil {
		return err
	}

	m.log.LogMail(order.Email, "dispatching e-ticket "+order.GatewayRef)

	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	auth := smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	if err := m.send(addr, auth, m.cfg.SMTPUsername, []string{order.Email}, msg); err != nil {
		return fmt.Errorf("send e-ticket to %s: %w", order.Email, err)
	}
	return nil
}

// composeMessage builds a multipart/related MIME message so the QR image
// renders inline via its Content-ID instead of as an attachment.
func (m *SMTPMailer) composeMessage(to, subject string, htmlBody, qrPNG []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.FromAddress)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/related; boundary=%s\r\n\r\n", writer.Boundary())

	htmlPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write(htmlBody); err != nil {
		return nil, err
	}

	imgPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"image/png"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-ID":                {"<ticket-qr>"},
		"Content-Disposition":       {`inline; filename="ticket-qr.png"`},
	})
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(qrPNG)
	for len(encoded) > 0 {
		line := encoded
		if len(line) > 76 {
			line = line[:76]
		}
		if _, err := fmt.Fprintf(imgPart, "%s\r\n", line); err != nil {
			return nil, err
		}
		encoded = encoded[len(line):]
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
