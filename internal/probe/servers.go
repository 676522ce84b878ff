package probe

/*
rxglyph — fast tool in Go for hunting homoglyph lookalike domains
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// RegistryServers maps a TLD to its registry WHOIS server (TCP port 43).
var RegistryServers = map[string]string{
	"com": "whois.verisign-grs.com", "net": "whois.verisign-grs.com",
	"org": "whois.pir.org", "io": "whois.nic.io",
	"ai": "whois.nic.ai", "in": "whois.registry.in",
	"dev": "whois.nic.google", "app": "whois.nic.google",
	"co": "whois.nic.co", "me": "whois.nic.me",
	"uk": "whois.nic.uk", "us": "whois.nic.us",
	"ca": "whois.cira.ca", "au": "whois.auda.org.au",
	"de": "whois.denic.de", "fr": "whois.nic.fr",
	"nl": "whois.sidn.nl", "eu": "whois.eu",
	"it": "whois.nic.it", "ch": "whois.nic.ch",
	"se": "whois.iis.se", "pl": "whois.dns.pl",
	"xyz": "whois.nic.xyz", "tech": "whois.nic.tech",
	"site": "whois.nic.site", "store": "whois.nic.store",
	"info": "whois.afilias.net", "biz": "whois.nic.biz",
	"mobi": "whois.nic.mobi", "pro": "whois.nic.pro",
	"cloud": "whois.nic.cloud", "online": "whois.nic.online",
	"live": "whois.nic.live", "space": "whois.nic.space",
	"top": "whois.nic.top",
}

// GenericServers are asked, in order, when nothing else answered.
var GenericServers = []string{"whois.iana.org", "whois.arin.net"}

// RDAPEndpoints maps a TLD to its RDAP base URL.
var RDAPEndpoints = map[string]string{
	"com":    "https://rdap.verisign.com/com/v1/",
	"net":    "https://rdap.verisign.com/net/v1/",
	"org":    "https://rdap.publicinterestregistry.net/rdap/",
	"io":     "https://rdap.nic.io/",
	"dev":    "https://rdap.nic.google/",
	"app":    "https://rdap.nic.google/",
	"uk":     "https://rdap.nominet.uk/uk/",
	"eu":     "https://rdap.eu/",
	"nl":     "https://rdap.sidn.nl/rdap/",
	"au":     "https://rdap.auda.org.au/rdap/",
	"cc":     "https://rdap.verisign.com/cc/v1/",
	"tv":     "https://rdap.verisign.com/tv/v1/",
	"xyz":    "https://rdap.centralnic.com/xyz/",
	"co":     "https://rdap.nic.co/",
	"me":     "https://rdap.nic.me/",
	"ai":     "https://rdap.nic.ai/",
	"tech":   "https://rdap.centralnic.com/tech/",
	"site":   "https://rdap.centralnic.com/site/",
	"store":  "https://rdap.centralnic.com/store/",
	"info":   "https://rdap.afilias.net/rdap/info/",
	"biz":    "https://rdap.nic.biz/",
	"mobi":   "https://rdap.nic.mobi/",
	"name":   "https://rdap.verisign.com/name/v1/",
	"pro":    "https://rdap.nic.pro/",
	"cloud":  "https://rdap.centralnic.com/cloud/",
	"online": "https://rdap.centralnic.com/online/",
	"live":   "https://rdap.centralnic.com/live/",
	"space":  "https://rdap.centralnic.com/space/",
	"top":    "https://rdap.nic.top/",
}

// RDAPBootstrap is used for TLDs missing from RDAPEndpoints.
const RDAPBootstrap = "https://rdap.org/"
