package config

// Default returns a configuration that works against the current LinkedIn UI without a file.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:             true,
			NoSandbox:            true,
			ViewportWidth:        1366,
			ViewportHeight:       768,
			NavigationTimeoutSec: 45,
			WaitTimeoutSec:       15,
			AcceptLanguage:       "en-US,en;q=0.9",
		},
		Human: HumanConfig{
			Personality: "normal",
			TypoRate:    0.025,
			ReadProfile: true,
			Sections:    []string{"about", "experience", "education", "skills"},
		},
		Timing: TimingConfig{
			PostLoadMinMs:   2000,
			PostLoadMaxMs:   4000,
			DialogTimeoutMs: 4000,
			SettleMinMs:     1500,
			SettleMaxMs:     3000,
			RunTimeoutSec:   240,
		},
		Login: LoginConfig{
			LandingURL:    "https://www.linkedin.com/feed/",
			LoginPatterns: []string{"/login", "/authwall", "/checkpoint", "/uas/login", "/signup"},
			AvatarSelectors: []string{
				"img.global-nav__me-photo",
				".global-nav__me img",
				"img.feed-identity-module__member-photo",
			},
			NavSelectors: []string{
				"#global-nav",
				"nav.global-nav__nav",
				"header.global-nav",
			},
			TextMarkers: []string{"Start a post", "My Network", "Messaging", "Notifications"},
			FormSelectors: []string{
				"input#username",
				"input[name='session_key']",
				"input#password",
			},
		},
		Markers: DefaultMarkers(),
		Batch: BatchConfig{
			MinDelaySeconds:    45,
			MaxDelaySeconds:    120,
			MinIntervalSeconds: 30,
			DailyLimit:         20,
		},
		Database: DatabaseConfig{
			Path: "./data/connector.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "./logs/connector.log",
			MaxSizeMB:  20,
			MaxBackups: 3,
		},
	}
}

// DefaultMarkers returns the control recognition rules for the profile top card and invite dialog.
func DefaultMarkers() Markers {
	negations := []string{"Pending", "Following", "Unfollow", "Message", "Withdraw"}

	// The profile's own action bar; the right rail and feed below carry their own
	// Connect and Message buttons for other people.
	topCard := "main section:first-of-type"
	// The More menu may be portaled outside the top card
	topCardOrMenu := topCard + ", div[role='menu'], div.artdeco-dropdown__content"
	dialog := "div[role='dialog'], div.artdeco-modal"

	return Markers{
		Connect: VerbMarkers{
			Root:    topCardOrMenu,
			Include: []string{"Connect", "Invite"},
			Exclude: negations,
			Selectors: []string{
				"main section button[aria-label^='Invite'][aria-label$='to connect']",
				"button.pvs-profile-actions__action[aria-label*='connect']",
				"div.pv-top-card-v2-ctas button[aria-label*='connect']",
				"div[role='menu'] div[aria-label*='to connect']",
				"div.artdeco-dropdown__content div[role='button'][aria-label*='connect']",
			},
		},
		Follow: VerbMarkers{
			Root:    topCardOrMenu,
			Include: []string{"Follow"},
			Exclude: negations,
			Selectors: []string{
				"main section button[aria-label^='Follow']",
				"button.pvs-profile-actions__action[aria-label^='Follow']",
				"div[role='menu'] div[aria-label^='Follow']",
			},
		},
		Send: VerbMarkers{
			Root:    dialog,
			Include: []string{"Send", "Send now", "Send invitation", "Send without a note", "Done"},
			Exclude: []string{"Message", "Cancel"},
			Selectors: []string{
				"div[role='dialog'] button[aria-label='Send now']",
				"div[role='dialog'] button[aria-label='Send invitation']",
				"div[role='dialog'] button[aria-label='Send without a note']",
				"div[role='dialog'] button.artdeco-button--primary",
			},
		},
		AddNote: VerbMarkers{
			Root:    dialog,
			Include: []string{"Add a note"},
			Selectors: []string{
				"div[role='dialog'] button[aria-label='Add a note']",
				"div[role='dialog'] button.artdeco-button--secondary",
			},
		},
		More: VerbMarkers{
			Root:    topCard,
			Include: []string{"More"},
			Exclude: []string{"Show more", "See more"},
			Selectors: []string{
				"main section button[aria-label='More actions']",
				"button.artdeco-dropdown__trigger[aria-label*='More']",
			},
		},
		Message: VerbMarkers{
			Root:    topCard,
			Include: []string{"Message"},
			Selectors: []string{
				"main section a[href*='/messaging/compose'][aria-label^='Message']",
				"main section button[aria-label^='Message']",
			},
		},
		Pending: VerbMarkers{
			Root:    topCard,
			Include: []string{"Pending"},
			Selectors: []string{
				"main section button[aria-label^='Pending']",
				"button.pvs-profile-actions__action[aria-label*='Pending']",
			},
		},
		Following: VerbMarkers{
			Root:    topCard,
			Include: []string{"Following"},
			Exclude: []string{"Unfollow"},
			Selectors: []string{
				"main section button[aria-label^='Following']",
				"main section button[aria-pressed='true'][aria-label*='Follow']",
			},
		},
		Dialog: []string{
			"div[role='dialog']",
			"div.artdeco-modal",
			"div.send-invite",
		},
		NoteField: []string{
			"div[role='dialog'] textarea[name='message']",
			"textarea#custom-message",
			"textarea.send-invite__custom-message",
			"div[role='dialog'] textarea",
		},
	}
}
