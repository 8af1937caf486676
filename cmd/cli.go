package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rmaulana/iam-service/internal/accessprofile"
	accessprofilePostgres "github.com/rmaulana/iam-service/internal/accessprofile/postgres"
	"github.com/rmaulana/iam-service/internal/core/events"
	"github.com/rmaulana/iam-service/internal/modcontrol"
	modcontrolPostgres "github.com/rmaulana/iam-service/internal/modcontrol/postgres"
	"github.com/rmaulana/iam-service/internal/permission"
	permissionPostgres "github.com/rmaulana/iam-service/internal/permission/postgres"
	"github.com/rmaulana/iam-service/internal/user"
	userPostgres "github.com/rmaulana/iam-service/internal/user/postgres"
	"github.com/rmaulana/iam-service/pkg/logger"
)

var (
	cliHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	cliCellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			PaddingRight(2)

	cliErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	cliOKStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)

// cliDeps holds the service layer wired over a live database connection for
// the interactive commands.
type cliDeps struct {
	userService    *user.Service
	profileService *accessprofile.Service
	permService    *permission.Service
	moduleService  *modcontrol.Service
	close          func()
}

func initCLIDeps() (*cliDeps, error) {
	cfg, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	lg := logger.LoggerWrapper()

	sqlDB, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	bus := events.NewEventBus(lg)
	registerAuditSubscriber(bus, lg)

	moduleService := modcontrol.NewService(modcontrolPostgres.NewModuleRepository(gormDB), lg)
	permService := permission.NewService(permissionPostgres.NewPermissionRepository(gormDB), moduleService, bus, lg)
	profileService := accessprofile.NewService(accessprofilePostgres.NewAccessProfileRepository(gormDB), permService, moduleService, bus, lg)
	userService := user.NewService(userPostgres.NewUserRepository(gormDB), bus, cfg.Security.BCryptCost, lg)

	return &cliDeps{
		userService:    userService,
		profileService: profileService,
		permService:    permService,
		moduleService:  moduleService,
		close:          func() { _ = sqlDB.Close() },
	}, nil
}

// renderTable prints a fixed-width table. Column widths follow the longest
// cell so keys and emails stay aligned.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(cliHeaderStyle.Render(pad(h, widths[i])))
		b.WriteString("  ")
	}
	b.WriteString("\n")
	for _, row := range rows {
		for i, cell := range row {
			b.WriteString(cliCellStyle.Render(pad(cell, widths[i])))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func promptLine(reader *bufio.Reader, label string) string {
	fmt.Printf("%s: ", label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptYesNo(reader *bufio.Reader, label string) bool {
	for {
		fmt.Printf("%s [y/n]: ", label)
		line, _ := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		case "n", "no", "":
			return false
		}
	}
}

func promptPassword(label string) (string, error) {
	fmt.Printf("%s: ", label)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

// promptNewPassword asks for a password and its confirmation, reprompting on
// mismatch so a typo never aborts the form.
func promptNewPassword() (string, error) {
	for {
		password, err := promptPassword("Password")
		if err != nil {
			return "", err
		}
		confirm, err := promptPassword("Confirm password")
		if err != nil {
			return "", err
		}
		if password == confirm {
			return password, nil
		}
		fmt.Println(cliErrorStyle.Render("passwords do not match, try again"))
	}
}

func reportError(err error) {
	fmt.Fprintln(os.Stderr, cliErrorStyle.Render("error: "+err.Error()))
}

func reportOK(msg string) {
	fmt.Println(cliOKStyle.Render(msg))
}
