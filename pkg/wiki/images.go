package wiki

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/wikidaily/pkg/domain"
)

const (
	maxArticleImages = 4
	thumbWidth       = "640"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true, ".tif": true, ".tiff": true}

// file names with these fragments are interface icons and maintenance symbols
var iconFragments = []string{"icon", "logo", "symbol", "commons-", "wiktionary", "wikiquote", "edit-clear",
	"question book", "ambox", "padlock", "stub", "red pog", "increase2", "decrease"}

// ArticleImages returns up to four images of an article with their URLs and descriptions.
// With prioritizeInfobox the article HTML is fetched first and files shown in the infobox
// go ahead of the rest. Each image costs one imageinfo request, issued in parallel.
func (c *Client) ArticleImages(ctx context.Context, title string, prioritizeInfobox bool) []domain.ArticleImage {
	var infobox map[string]bool
	if prioritizeInfobox {
		if content := c.ArticleHTML(ctx, title); content != "" {
			infobox = infoboxFiles(content)
		}
	}

	files, err := c.imageFiles(ctx, title)
	if err != nil {
		logFail("API_IMAGES_ERROR", err)
		return nil
	}

	// stable partition, infobox files first
	ordered := make([]string, 0, len(files))
	var rest []string
	for _, f := range files {
		if infobox[fileKey(f)] {
			ordered = append(ordered, f)
			continue
		}
		rest = append(rest, f)
	}
	ordered = append(ordered, rest...)
	if len(ordered) > maxArticleImages {
		ordered = ordered[:maxArticleImages]
	}

	images := make([]*domain.ArticleImage, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range ordered {
		g.Go(func() error {
			img, err := c.imageInfo(gctx, file)
			if err != nil {
				logFail("API_IMAGEINFO_ERROR", err)
				return nil
			}
			images[i] = img
			return nil
		})
	}
	_ = g.Wait()

	res := make([]domain.ArticleImage, 0, len(images))
	for _, img := range images {
		if img != nil && img.URL != "" {
			res = append(res, *img)
		}
	}
	return res
}

// imageFiles lists the File: pages used by an article, icons skipped
func (c *Client) imageFiles(ctx context.Context, title string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "images")
	params.Set("imlimit", "50")
	params.Set("redirects", "1")
	params.Set("titles", title)

	var resp struct {
		Query struct {
			Pages []struct {
				Images []struct {
					Title string `json:"title"`
				} `json:"images"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.query(ctx, params, &resp); err != nil {
		return nil, err
	}

	var res []string
	for _, p := range resp.Query.Pages {
		for _, img := range p.Images {
			if usableImage(img.Title) {
				res = append(res, img.Title)
			}
		}
	}
	return res, nil
}

func usableImage(file string) bool {
	if !imageExtensions[strings.ToLower(path.Ext(file))] {
		return false
	}
	lower := strings.ToLower(strings.ReplaceAll(file, "_", " "))
	for _, frag := range iconFragments {
		if strings.Contains(lower, frag) {
			return false
		}
	}
	return true
}

// imageInfo resolves a File: page to a thumbnail URL and a plain-text description
func (c *Client) imageInfo(ctx context.Context, file string) (*domain.ArticleImage, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "imageinfo")
	params.Set("iiprop", "url|extmetadata")
	params.Set("iiurlwidth", thumbWidth)
	params.Set("iiextmetadatafilter", "ImageDescription")
	params.Set("titles", file)

	var resp struct {
		Query struct {
			Pages []struct {
				ImageInfo []struct {
					URL         string `json:"url"`
					ThumbURL    string `json:"thumburl"`
					ExtMetadata struct {
						ImageDescription struct {
							Value string `json:"value"`
						} `json:"ImageDescription"`
					} `json:"extmetadata"`
				} `json:"imageinfo"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.query(ctx, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Query.Pages) == 0 || len(resp.Query.Pages[0].ImageInfo) == 0 {
		return &domain.ArticleImage{Title: file}, nil
	}

	info := resp.Query.Pages[0].ImageInfo[0]
	img := &domain.ArticleImage{Title: file, URL: info.ThumbURL, Description: c.stripTags(info.ExtMetadata.ImageDescription.Value)}
	if img.URL == "" {
		img.URL = info.URL
	}
	return img, nil
}

// infoboxFiles collects the File: pages shown inside infobox markup, both from anchors
// pointing to a file page and from images whose enclosing link does
func infoboxFiles(content string) map[string]bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	res := map[string]bool{}
	add := func(href string) {
		if name := fileFromHref(href); name != "" {
			res[fileKey(name)] = true
		}
	}

	infobox := doc.Find("[class*='infobox']")
	infobox.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("href", ""))
	})
	infobox.Find("img").Each(func(_ int, s *goquery.Selection) {
		if link := s.ParentsFiltered("a[href]").First(); link.Length() > 0 {
			add(link.AttrOr("href", ""))
		}
		// some templates render bare images, the file name is in the thumbnail URL
		if src := s.AttrOr("src", ""); strings.Contains(src, "/thumb/") {
			parts := strings.Split(src, "/")
			if len(parts) >= 2 {
				if name, err := url.PathUnescape(parts[len(parts)-2]); err == nil {
					res[fileKey("File:"+name)] = true
				}
			}
		}
	})
	return res
}

// fileFromHref extracts "File:Name.jpg" from a /wiki/File: link
func fileFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	idx := strings.Index(u.Path, "/wiki/")
	if idx < 0 {
		return ""
	}
	name := u.Path[idx+len("/wiki/"):]
	if !strings.HasPrefix(name, "File:") && !strings.HasPrefix(name, "Image:") {
		return ""
	}
	return "File:" + strings.SplitN(name, ":", 2)[1]
}

// fileKey normalizes a file title for comparison
func fileKey(file string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(file), "_", " "))
}
