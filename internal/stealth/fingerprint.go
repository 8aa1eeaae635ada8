package stealth

import "math/rand"

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

// RandomUserAgent returns a realistic desktop Chrome user agent
func RandomUserAgent(r *rand.Rand) string {
	return userAgents[r.Intn(len(userAgents))]
}

// AutomationPatchJS runs before any page script. It hides navigator.webdriver and gives
// the page a plausible plugin list, languages and chrome.runtime.
const AutomationPatchJS = `(() => {
	const define = (target, prop, getter) => {
		try {
			Object.defineProperty(target, prop, { get: getter, configurable: true });
		} catch (e) {}
	};

	define(Navigator.prototype, 'webdriver', () => undefined);
	define(navigator, 'languages', () => ['en-US', 'en']);
	define(navigator, 'plugins', () => [
		{ name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer', description: 'Portable Document Format', length: 1 },
		{ name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', description: '', length: 1 },
		{ name: 'Native Client', filename: 'internal-nacl-plugin', description: '', length: 2 },
	]);

	if (!window.chrome) {
		window.chrome = { runtime: {} };
	}

	const permissions = window.navigator.permissions;
	if (permissions && permissions.query) {
		const originalQuery = permissions.query.bind(permissions);
		permissions.query = (parameters) => (
			parameters.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: originalQuery(parameters)
		);
	}
})();`
