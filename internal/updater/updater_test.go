package updater

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock release data for testing
var mockRelease = GitHubRelease{
	TagName: "v2.0.0",
	Name:    "Version 2.0.0",
	Body:    "This is a test release with new features and bug fixes.",
	Assets: []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	}{
		{Name: "gotaku-linux-amd64", BrowserDownloadURL: "http://example.com/gotaku-linux-amd64"},
		{Name: "gotaku-windows-amd64.exe", BrowserDownloadURL: "http://example.com/gotaku-windows-amd64.exe"},
		{Name: "gotaku-darwin-amd64", BrowserDownloadURL: "http://example.com/gotaku-darwin-amd64"},
		{Name: "gotaku-darwin-arm64", BrowserDownloadURL: "http://example.com/gotaku-darwin-arm64"},
		{Name: "gotaku-darwin-universal", BrowserDownloadURL: "http://example.com/gotaku-darwin-universal"},
		{Name: "gotaku-darwin", BrowserDownloadURL: "http://example.com/gotaku-darwin"},
	},
}

func TestIsVersionNewer(t *testing.T) {
	tests := []struct {
		name     string
		latest   string
		current  string
		expected bool
		hasError bool
	}{
		{
			name:     "newer major version",
			latest:   "2.0.0",
			current:  "1.0.0",
			expected: true,
			hasError: false,
		},
		{
			name:     "newer minor version",
			latest:   "1.1.0",
			current:  "1.0.0",
			expected: true,
			hasError: false,
		},
		{
			name:     "newer patch version",
			latest:   "1.0.1",
			current:  "1.0.0",
			expected: true,
			hasError: false,
		},
		{
			name:     "same version",
			latest:   "1.0.0",
			current:  "1.0.0",
			expected: false,
			hasError: false,
		},
		{
			name:     "older version",
			latest:   "1.0.0",
			current:  "1.1.0",
			expected: false,
			hasError: false,
		},
		{
			name:     "different length versions",
			latest:   "1.0.0.1",
			current:  "1.0.0",
			expected: true,
			hasError: false,
		},
		{
			name:     "invalid latest version",
			latest:   "1.0.invalid",
			current:  "1.0.0",
			expected: false,
			hasError: true,
		},
		{
			name:     "invalid current version",
			latest:   "1.0.0",
			current:  "1.0.invalid",
			expected: false,
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := isVersionNewer(tt.latest, tt.current)

			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestFindAssetForPlatform(t *testing.T) {
	tests := []struct {
		name         string
		platform     PlatformInfo
		expectedName string
		hasError     bool
	}{
		{
			name:         "linux amd64",
			platform:     PlatformInfo{OS: "linux", Arch: "amd64"},
			expectedName: "gotaku-linux-amd64",
			hasError:     false,
		},
		{
			name:         "windows amd64",
			platform:     PlatformInfo{OS: "windows", Arch: "amd64"},
			expectedName: "gotaku-windows-amd64.exe",
			hasError:     false,
		},
		{
			name:         "darwin amd64",
			platform:     PlatformInfo{OS: "darwin", Arch: "amd64"},
			expectedName: "gotaku-darwin-amd64",
			hasError:     false,
		},
		{
			name:         "darwin arm64",
			platform:     PlatformInfo{OS: "darwin", Arch: "arm64"},
			expectedName: "gotaku-darwin-arm64",
			hasError:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, name, err := findAssetForPlatformWithInfo(&mockRelease, tt.platform)

			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedName, name)
				assert.Contains(t, url, "http://example.com/")
			}
		})
	}
}

func TestFindAssetForPlatform_UnsupportedPlatform(t *testing.T) {
	unsupportedPlatform := PlatformInfo{OS: "unsupported", Arch: "amd64"}
	_, _, err := findAssetForPlatformWithInfo(&mockRelease, unsupportedPlatform)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported platform")
}

func TestFindAssetForPlatform_NoMatchingAsset(t *testing.T) {
	// Create release with no matching assets
	emptyRelease := &GitHubRelease{
		Assets: []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		}{
			{Name: "some-other-file.txt", BrowserDownloadURL: "http://example.com/other"},
		},
	}

	platform := PlatformInfo{OS: "linux", Arch: "amd64"}
	_, _, err := findAssetForPlatformWithInfo(emptyRelease, platform)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no compatible asset found")
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{
			name:     "text shorter than max length",
			text:     "short",
			maxLen:   10,
			expected: "short",
		},
		{
			name:     "text equal to max length",
			text:     "exact",
			maxLen:   5,
			expected: "exact",
		},
		{
			name:     "text longer than max length",
			text:     "this is a very long text",
			maxLen:   10,
			expected: "this is a ...",
		},
		{
			name:     "empty text",
			text:     "",
			maxLen:   5,
			expected: "",
		},
		{
			name:     "max length zero",
			text:     "test",
			maxLen:   0,
			expected: "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncateText(tt.text, tt.maxLen)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCopyFile(t *testing.T) {
	tempDir := t.TempDir()

	srcFile := filepath.Join(tempDir, "source.txt")
	content := "This is test content for file copying"
	err := os.WriteFile(srcFile, []byte(content), 0644)
	require.NoError(t, err)

	err = os.Chmod(srcFile, 0755)
	require.NoError(t, err)

	dstFile := filepath.Join(tempDir, "destination.txt")
	err = copyFile(srcFile, dstFile)
	assert.NoError(t, err)

	copiedContent, err := os.ReadFile(dstFile)
	require.NoError(t, err)
	assert.Equal(t, content, string(copiedContent))

	srcInfo, err := os.Stat(srcFile)
	require.NoError(t, err)
	dstInfo, err := os.Stat(dstFile)
	require.NoError(t, err)
	assert.Equal(t, srcInfo.Mode(), dstInfo.Mode())
}

func TestCopyFile_SourceNotExists(t *testing.T) {
	tempDir := t.TempDir()
	srcFile := filepath.Join(tempDir, "nonexistent.txt")
	dstFile := filepath.Join(tempDir, "destination.txt")

	err := copyFile(srcFile, dstFile)
	assert.Error(t, err)
}

func TestCopyFile_InvalidDestination(t *testing.T) {
	tempDir := t.TempDir()

	srcFile := filepath.Join(tempDir, "source.txt")
	err := os.WriteFile(srcFile, []byte("test"), 0644)
	require.NoError(t, err)

	// Destination directory does not exist
	dstFile := filepath.Join(tempDir, "nonexistent", "destination.txt")
	err = copyFile(srcFile, dstFile)
	assert.Error(t, err)
}

// ===== Test: release check decodes the API response and flags newer tags =====
func TestCheckForUpdates_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/releases/latest") {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(mockRelease); err != nil {
				http.Error(w, "Failed to encode JSON", http.StatusInternalServerError)
			}
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	oldBase := apiBase
	apiBase = server.URL
	defer func() { apiBase = oldBase }()

	release, hasUpdate, err := CheckForUpdates()
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.Equal(t, "v2.0.0", release.TagName)
	assert.True(t, hasUpdate)
}

func TestCheckForUpdates_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer server.Close()

	oldBase := apiBase
	apiBase = server.URL
	defer func() { apiBase = oldBase }()

	_, _, err := CheckForUpdates()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestDownloadAsset_MockServer(t *testing.T) {
	testContent := "fake binary content"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		if _, err := w.Write([]byte(testContent)); err != nil {
			http.Error(w, "Failed to write response", http.StatusInternalServerError)
			return
		}
	}))
	defer server.Close()

	tempFile, err := downloadAssetWithTestFlag(server.URL, "test-binary", true)
	require.NoError(t, err)
	defer func() {
		if err := os.Remove(tempFile); err != nil {
			t.Logf("Failed to remove temp file: %v", err)
		}
	}()

	content, err := os.ReadFile(tempFile)
	require.NoError(t, err)
	assert.Equal(t, testContent, string(content))

	assert.True(t, strings.Contains(tempFile, os.TempDir()))
	assert.True(t, strings.Contains(tempFile, "gotaku-update-"))
}

func TestDownloadAsset_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := downloadAssetWithTestFlag(server.URL, "test-binary", true)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "download failed with status 500")
}

func TestReplaceExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping on Windows due to file locking complexities")
	}

	tempDir := t.TempDir()

	currentExe := filepath.Join(tempDir, "current")
	currentContent := "current executable content"
	err := os.WriteFile(currentExe, []byte(currentContent), 0755)
	require.NoError(t, err)

	newExe := filepath.Join(tempDir, "new")
	newContent := "new executable content"
	err = os.WriteFile(newExe, []byte(newContent), 0644)
	require.NoError(t, err)

	err = replaceExecutable(currentExe, newExe)
	assert.NoError(t, err)

	content, err := os.ReadFile(currentExe)
	require.NoError(t, err)
	assert.Equal(t, newContent, string(content))

	info, err := os.Stat(currentExe)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode())
}

func TestReplaceExecutable_WindowsLogic(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("Windows-specific test")
	}

	tempDir := t.TempDir()

	currentExe := filepath.Join(tempDir, "current.exe")
	err := os.WriteFile(currentExe, []byte("current executable content"), 0755)
	require.NoError(t, err)

	newExe := filepath.Join(tempDir, "new.exe")
	newContent := "new executable content"
	err = os.WriteFile(newExe, []byte(newContent), 0644)
	require.NoError(t, err)

	err = replaceExecutable(currentExe, newExe)
	assert.NoError(t, err)

	content, err := os.ReadFile(currentExe)
	require.NoError(t, err)
	assert.Equal(t, newContent, string(content))
}

func TestGetCurrentPlatform(t *testing.T) {
	platform := GetCurrentPlatform()
	assert.NotEmpty(t, platform.OS)
	assert.NotEmpty(t, platform.Arch)
	assert.Equal(t, runtime.GOOS, platform.OS)
	assert.Equal(t, runtime.GOARCH, platform.Arch)
}

func TestDownloadAsset_SlowServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		if _, err := w.Write([]byte("test content")); err != nil {
			http.Error(w, "Failed to write response", http.StatusInternalServerError)
			return
		}
	}))
	defer server.Close()

	// The download client carries no overall deadline, so a slow transfer
	// still completes.
	tempFile, err := downloadAssetWithTestFlag(server.URL, "slow-binary", true)
	require.NoError(t, err)
	defer func() {
		if err := os.Remove(tempFile); err != nil {
			t.Logf("Failed to remove temp file: %v", err)
		}
	}()

	content, err := os.ReadFile(tempFile)
	require.NoError(t, err)
	assert.Equal(t, "test content", string(content))
}

func TestDownloadAsset_LargeFile(t *testing.T) {
	largeContent := strings.Repeat("A", 10*1024) // 10KB
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		if _, err := w.Write([]byte(largeContent)); err != nil {
			http.Error(w, "Failed to write response", http.StatusInternalServerError)
			return
		}
	}))
	defer server.Close()

	tempFile, err := downloadAssetWithTestFlag(server.URL, "large-binary", true)
	require.NoError(t, err)
	defer func() {
		if err := os.Remove(tempFile); err != nil {
			t.Logf("Failed to remove temp file: %v", err)
		}
	}()

	content, err := os.ReadFile(tempFile)
	require.NoError(t, err)
	assert.Equal(t, largeContent, string(content))
}

func TestCopyFile_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Permission test not applicable on Windows")
	}

	tempDir := t.TempDir()

	permissions := []os.FileMode{0644, 0755, 0600, 0777}

	for _, perm := range permissions {
		t.Run(perm.String(), func(t *testing.T) {
			srcFile := filepath.Join(tempDir, "source_"+perm.String())
			dstFile := filepath.Join(tempDir, "dest_"+perm.String())

			content := "test content for " + perm.String()
			err := os.WriteFile(srcFile, []byte(content), perm)
			require.NoError(t, err)

			// WriteFile is subject to umask; pin the mode explicitly.
			err = os.Chmod(srcFile, perm)
			require.NoError(t, err)

			err = copyFile(srcFile, dstFile)
			require.NoError(t, err)

			srcInfo, err := os.Stat(srcFile)
			require.NoError(t, err)
			dstInfo, err := os.Stat(dstFile)
			require.NoError(t, err)

			assert.Equal(t, srcInfo.Mode(), dstInfo.Mode())
		})
	}
}

func TestCopyFile_Concurrent(t *testing.T) {
	tempDir := t.TempDir()
	srcFile := filepath.Join(tempDir, "source.txt")
	content := "concurrent test content"

	err := os.WriteFile(srcFile, []byte(content), 0644)
	require.NoError(t, err)

	const numCopies = 5
	done := make(chan error, numCopies)

	for i := 0; i < numCopies; i++ {
		go func(index int) {
			dstFile := filepath.Join(tempDir, "dest_"+string(rune('A'+index))+".txt")
			done <- copyFile(srcFile, dstFile)
		}(i)
	}

	for i := 0; i < numCopies; i++ {
		err := <-done
		assert.NoError(t, err)
	}
}

func TestReplaceExecutable_EdgeCases(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("empty files", func(t *testing.T) {
		currentExe := filepath.Join(tempDir, "current_empty")
		newExe := filepath.Join(tempDir, "new_empty")

		err := os.WriteFile(currentExe, []byte{}, 0755)
		require.NoError(t, err)
		err = os.WriteFile(newExe, []byte{}, 0644)
		require.NoError(t, err)

		err = replaceExecutable(currentExe, newExe)
		assert.NoError(t, err)
	})

	t.Run("binary files", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("Skipping binary test on Windows")
		}

		currentExe := filepath.Join(tempDir, "current_binary")
		newExe := filepath.Join(tempDir, "new_binary")

		binaryContent := []byte{0x7f, 0x45, 0x4c, 0x46} // ELF magic bytes
		err := os.WriteFile(currentExe, binaryContent, 0755)
		require.NoError(t, err)

		newBinaryContent := []byte{0x7f, 0x45, 0x4c, 0x47}
		err = os.WriteFile(newExe, newBinaryContent, 0644)
		require.NoError(t, err)

		err = replaceExecutable(currentExe, newExe)
		require.NoError(t, err)

		content, err := os.ReadFile(currentExe)
		require.NoError(t, err)
		assert.Equal(t, newBinaryContent, content)

		info, err := os.Stat(currentExe)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0755), info.Mode())
	})
}

func BenchmarkIsVersionNewer(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = isVersionNewer("2.0.0", "1.0.0")
	}
}

func BenchmarkTruncateText(b *testing.B) {
	text := "This is a very long text that needs to be truncated for display purposes"
	for i := 0; i < b.N; i++ {
		_ = truncateText(text, 50)
	}
}

func BenchmarkFindAssetForPlatform(b *testing.B) {
	platform := PlatformInfo{OS: "linux", Arch: "amd64"}
	for i := 0; i < b.N; i++ {
		_, _, _ = findAssetForPlatformWithInfo(&mockRelease, platform)
	}
}

func TestIsVersionNewer_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		latest   string
		current  string
		expected bool
	}{
		{"empty versions", "", "", false},
		{"single digit versions", "2", "1", true},
		{"mixed length", "1.2", "1.2.0", false},
		{"very long versions", "1.2.3.4.5.6", "1.2.3.4.5.5", true},
		{"zeros", "1.0.0", "1.0", false},
		{"leading zeros", "01.02.03", "1.2.3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := isVersionNewer(tt.latest, tt.current)
			if tt.name == "empty versions" {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestIsVersionNewer_SemanticVersioning(t *testing.T) {
	tests := []struct {
		name     string
		latest   string
		current  string
		expected bool
		hasError bool
	}{
		{"same version", "2.0.0", "2.0.0", false, false},
		{"four part version newer", "1.2.3.4", "1.2.3.3", true, false},
		{"four part version same", "1.2.3.4", "1.2.3.4", false, false},
		{"large version numbers", "99.99.99", "1.0.0", true, false},
		{"very large numbers", "999.999.999", "1.0.0", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := isVersionNewer(tt.latest, tt.current)

			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestFindAssetForPlatform_CaseSensitivity(t *testing.T) {
	mixedCaseRelease := &GitHubRelease{
		Assets: []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		}{
			{Name: "GoTaku-Linux-amd64", BrowserDownloadURL: "http://example.com/GoTaku-Linux-amd64"},
			{Name: "GOTAKU-WINDOWS-AMD64.EXE", BrowserDownloadURL: "http://example.com/GOTAKU-WINDOWS-AMD64.EXE"},
			{Name: "gotaku-darwin-amd64", BrowserDownloadURL: "http://example.com/gotaku-darwin-amd64"},
		},
	}

	tests := []struct {
		name         string
		platform     PlatformInfo
		expectedName string
	}{
		{
			name:         "linux case insensitive match",
			platform:     PlatformInfo{OS: "linux", Arch: "amd64"},
			expectedName: "GoTaku-Linux-amd64",
		},
		{
			name:         "windows case insensitive match",
			platform:     PlatformInfo{OS: "windows", Arch: "amd64"},
			expectedName: "GOTAKU-WINDOWS-AMD64.EXE",
		},
		{
			name:         "darwin exact match",
			platform:     PlatformInfo{OS: "darwin", Arch: "amd64"},
			expectedName: "gotaku-darwin-amd64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, name, err := findAssetForPlatformWithInfo(mixedCaseRelease, tt.platform)

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedName, name)
			assert.NotEmpty(t, url)
		})
	}
}

func TestTruncateText_Unicode(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
	}{
		{
			name:   "multibyte text gets cut on byte boundary",
			text:   "Hello 世界 🌍",
			maxLen: 8,
		},
		{
			name:   "ascii only",
			text:   "Hello World",
			maxLen: 5,
		},
		{
			name:   "short text untouched",
			text:   "Test",
			maxLen: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncateText(tt.text, tt.maxLen)
			if len(tt.text) <= tt.maxLen {
				assert.Equal(t, tt.text, result)
			} else {
				assert.LessOrEqual(t, len(result), tt.maxLen+3)
				assert.True(t, strings.HasSuffix(result, "..."))
			}
		})
	}
}

func TestIsVersionNewer_StressTest(t *testing.T) {
	longVersion1 := "1.2.3.4.5.6.7.8.9.10.11.12"
	longVersion2 := "1.2.3.4.5.6.7.8.9.10.11.13"

	result, err := isVersionNewer(longVersion2, longVersion1)
	assert.NoError(t, err)
	assert.True(t, result)

	result, err = isVersionNewer(longVersion1, longVersion1)
	assert.NoError(t, err)
	assert.False(t, result)
}

func TestDownloadAsset_ErrorHandling(t *testing.T) {
	t.Run("invalid URL", func(t *testing.T) {
		_, err := downloadAssetWithTestFlag("not-a-valid-url", "test", true)
		assert.Error(t, err)
	})

	t.Run("404 not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		_, err := downloadAssetWithTestFlag(server.URL, "test", true)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

func BenchmarkCopyFile(b *testing.B) {
	tempDir := b.TempDir()
	srcFile := filepath.Join(tempDir, "source.txt")
	content := strings.Repeat("benchmark test content\n", 1000) // ~23KB

	err := os.WriteFile(srcFile, []byte(content), 0644)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dstFile := filepath.Join(tempDir, "dest_"+string(rune(i%26+'A'))+".txt")
		_ = copyFile(srcFile, dstFile)
		if err := os.Remove(dstFile); err != nil {
			b.Logf("Failed to remove temp file: %v", err)
		}
	}
}

func TestFindAssetForPlatform_AllCombinations(t *testing.T) {
	comprehensiveRelease := &GitHubRelease{
		Assets: []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		}{
			{Name: "gotaku-linux-amd64", BrowserDownloadURL: "http://example.com/gotaku-linux-amd64"},
			{Name: "gotaku-linux-386", BrowserDownloadURL: "http://example.com/gotaku-linux-386"},
			{Name: "gotaku-linux-arm64", BrowserDownloadURL: "http://example.com/gotaku-linux-arm64"},

			{Name: "gotaku-windows-amd64.exe", BrowserDownloadURL: "http://example.com/gotaku-windows-amd64.exe"},
			{Name: "gotaku-windows-386.exe", BrowserDownloadURL: "http://example.com/gotaku-windows-386.exe"},

			{Name: "gotaku-darwin-amd64", BrowserDownloadURL: "http://example.com/gotaku-darwin-amd64"},
			{Name: "gotaku-darwin-arm64", BrowserDownloadURL: "http://example.com/gotaku-darwin-arm64"},
			{Name: "gotaku-darwin-universal", BrowserDownloadURL: "http://example.com/gotaku-darwin-universal"},
			{Name: "gotaku-darwin", BrowserDownloadURL: "http://example.com/gotaku-darwin"},

			{Name: "gotaku-macos-amd64", BrowserDownloadURL: "http://example.com/gotaku-macos-amd64"},
		},
	}

	platformTests := []struct {
		os           string
		arch         string
		expectedName string
	}{
		{"linux", "amd64", "gotaku-linux-amd64"},
		{"linux", "386", "gotaku-linux-386"},
		{"linux", "arm64", "gotaku-linux-arm64"},
		{"windows", "amd64", "gotaku-windows-amd64.exe"},
		{"windows", "386", "gotaku-windows-386.exe"},
		{"darwin", "amd64", "gotaku-darwin-amd64"},
		{"darwin", "arm64", "gotaku-darwin-arm64"},
	}

	for _, tt := range platformTests {
		t.Run(tt.os+"_"+tt.arch, func(t *testing.T) {
			platform := PlatformInfo{OS: tt.os, Arch: tt.arch}
			url, name, err := findAssetForPlatformWithInfo(comprehensiveRelease, platform)

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedName, name)
			assert.Contains(t, url, "http://example.com/")
		})
	}
}

// ===== Test: darwin falls back to universal builds when no arch match exists =====
func TestFindAssetForPlatform_UniversalBinaryFallback(t *testing.T) {
	universalOnlyRelease := &GitHubRelease{
		Assets: []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		}{
			{Name: "gotaku-linux-amd64", BrowserDownloadURL: "http://example.com/gotaku-linux-amd64"},
			{Name: "gotaku-windows-amd64.exe", BrowserDownloadURL: "http://example.com/gotaku-windows-amd64.exe"},
			{Name: "gotaku-darwin-universal", BrowserDownloadURL: "http://example.com/gotaku-darwin-universal"},
			{Name: "gotaku-darwin", BrowserDownloadURL: "http://example.com/gotaku-darwin"},
		},
	}

	tests := []struct {
		name         string
		platform     PlatformInfo
		expectedName string
	}{
		{
			name:         "amd64_falls_back_to_universal",
			platform:     PlatformInfo{OS: "darwin", Arch: "amd64"},
			expectedName: "gotaku-darwin-universal",
		},
		{
			name:         "arm64_falls_back_to_universal",
			platform:     PlatformInfo{OS: "darwin", Arch: "arm64"},
			expectedName: "gotaku-darwin-universal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, name, err := findAssetForPlatformWithInfo(universalOnlyRelease, tt.platform)

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedName, name)
			assert.Contains(t, url, "http://example.com/")
		})
	}

	genericOnlyRelease := &GitHubRelease{
		Assets: []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		}{
			{Name: "gotaku-linux-amd64", BrowserDownloadURL: "http://example.com/gotaku-linux-amd64"},
			{Name: "gotaku-darwin", BrowserDownloadURL: "http://example.com/gotaku-darwin"},
		},
	}

	t.Run("fallback_to_generic_universal", func(t *testing.T) {
		platform := PlatformInfo{OS: "darwin", Arch: "amd64"}
		url, name, err := findAssetForPlatformWithInfo(genericOnlyRelease, platform)

		assert.NoError(t, err)
		assert.Equal(t, "gotaku-darwin", name)
		assert.Contains(t, url, "http://example.com/")
	})
}
