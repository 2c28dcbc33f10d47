package config

// Decoration carries the per-invocation options that change how the
// web-facing tools are called.
type Decoration struct {
	// Proxy is a proxy URL, e.g. http://127.0.0.1:8080.
	Proxy string
	// Cookie is a raw cookie header value, e.g. "session=abc".
	Cookie string
}

// proxyFlags maps tool keys to the flag each tool uses for a proxy.
var proxyFlags = map[string]string{
	ToolHTTPX:          "-http-proxy",
	ToolNuclei:         "-proxy",
	ToolNucleiTokens:   "-proxy",
	ToolNucleiCloud:    "-proxy",
	ToolNucleiTakeover: "-proxy",
	ToolKatana:         "-proxy",
	ToolFeroxbuster:    "--proxy",
	ToolDalfox:         "--proxy",
}

// cookieHeaderTools send the cookie as a "Cookie:" header with -H.
var cookieHeaderTools = []string{
	ToolNuclei,
	ToolNucleiTokens,
	ToolNucleiCloud,
	ToolKatana,
	ToolFeroxbuster,
}

// Decorate returns a copy of mode with proxy and cookie arguments attached
// to the tools that support them. mode itself is not modified.
//
// The values become separate argv elements, so a cookie containing spaces,
// quotes or semicolons reaches the tool unchanged and is never interpreted.
func Decorate(mode ModeConfig, d Decoration) ModeConfig {
	out := mode.clone()
	if d.Proxy == "" && d.Cookie == "" {
		return out
	}
	if out.extra == nil {
		out.extra = make(map[string][]string)
	}
	if d.Proxy != "" {
		for _, key := range ToolKeys() {
			if flag, ok := proxyFlags[key]; ok {
				out.extra[key] = append(out.extra[key], flag, d.Proxy)
			}
		}
	}
	if d.Cookie != "" {
		header := "Cookie: " + d.Cookie
		for _, key := range cookieHeaderTools {
			out.extra[key] = append(out.extra[key], "-H", header)
		}
		out.extra[ToolGau] = append(out.extra[ToolGau], "--cookie", d.Cookie)
	}
	return out
}
