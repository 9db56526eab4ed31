package feed

import "testing"

const rssSample = `<?xml version="1.0"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Example Blog</title>
    <link>https://blog.example</link>
    <item>
      <guid>post-1</guid>
      <title>First Post</title>
      <link>https://blog.example/1</link>
      <description>Short summary</description>
      <content:encoded><![CDATA[<p>Full <b>body</b></p>]]></content:encoded>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
      <dc:creator>Ada</dc:creator>
    </item>
    <item>
      <title>No GUID</title>
      <link>https://blog.example/2</link>
    </item>
  </channel>
</rss>`

const atomSample = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Example</title>
  <link rel="self" href="https://atom.example/feed"/>
  <link rel="alternate" href="https://atom.example"/>
  <entry>
    <id>urn:entry:1</id>
    <title>Entry One</title>
    <link rel="alternate" href="https://atom.example/1"/>
    <summary>sum</summary>
    <content type="html">&lt;p&gt;content&lt;/p&gt;</content>
    <updated>2006-01-02T15:04:05Z</updated>
    <author><name>Grace</name></author>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	f, err := Parse([]byte(rssSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Title != "Example Blog" || len(f.Entries) != 2 {
		t.Fatalf("feed: %+v", f)
	}
	e := f.Entries[0]
	if e.GUID != "post-1" || e.Author != "Ada" || e.Content != "<p>Full <b>body</b></p>" {
		t.Fatalf("entry: %+v", e)
	}
	// Missing GUID falls back to the link.
	if f.Entries[1].GUID != "https://blog.example/2" {
		t.Fatalf("guid fallback: %+v", f.Entries[1])
	}
}

func TestParseAtom(t *testing.T) {
	f, err := Parse([]byte(atomSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Title != "Atom Example" || f.Link != "https://atom.example" {
		t.Fatalf("feed: %+v", f)
	}
	e := f.Entries[0]
	if e.GUID != "urn:entry:1" || e.Link != "https://atom.example/1" {
		t.Fatalf("entry: %+v", e)
	}
	if e.Content != "<p>content</p>" || e.Published != "2006-01-02T15:04:05Z" || e.Author != "Grace" {
		t.Fatalf("entry fields: %+v", e)
	}
}

func TestParseRejectsJunk(t *testing.T) {
	for _, in := range []string{"", "   ", "<html></html>", "not xml"} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", in)
		}
	}
}
