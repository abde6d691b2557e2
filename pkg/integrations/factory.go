package integrations

// Factory builds integration clients from decrypted credentials. Base URLs
// default to the production endpoints and are overridable for tests.
type Factory struct {
	AttioBaseURL string
	BrevoBaseURL string
	Mailbox      MailboxConfig
}

// CRM builds a CRM client with the given API key
func (f *Factory) CRM(apiKey string) CRMClient {
	return NewAttioClient(apiKey, f.AttioBaseURL)
}

// Marketing builds a marketing client with the given API key
func (f *Factory) Marketing(apiKey string) MarketingClient {
	return NewBrevoClient(apiKey, f.BrevoBaseURL)
}

// Email builds an email sender with the given mailbox password
func (f *Factory) Email(password string) EmailSender {
	return NewMailboxClient(f.Mailbox, password)
}

// Chat builds a chat notifier with the given webhook URL
func (f *Factory) Chat(webhookURL string) ChatNotifier {
	return NewSlackClient(webhookURL)
}
